package callback_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hesabgar/hesabgar-bot/internal/callback"
)

func TestEncodeRoundTrip(t *testing.T) {
	data := callback.Encode(callback.ActionPaid, "alice", "12345", "created_alice_1700000000")

	tok, err := callback.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, callback.ActionPaid, tok.Action)
	assert.Equal(t, "alice", tok.Username)
	assert.Equal(t, "12345", tok.AdminID)
	assert.Equal(t, "created_alice_1700000000", tok.EventKey)
}

func TestEncodeTruncatesEventKey(t *testing.T) {
	longKey := strings.Repeat("k", 100)

	data := callback.Encode(callback.ActionAddSettlement, "bob", "999", longKey)
	assert.LessOrEqual(t, len(data), callback.LimitBytes)

	tok, err := callback.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, callback.ActionAddSettlement, tok.Action)
	assert.Equal(t, "bob", tok.Username)
	assert.True(t, strings.HasPrefix(longKey, tok.EventKey))
}

func TestEncodeDropsKeyEntirelyWhenPrefixOverflows(t *testing.T) {
	user := strings.Repeat("u", 46)

	data := callback.Encode(callback.ActionUnpaid, user, "123456789", "key")
	assert.LessOrEqual(t, len(data), callback.LimitBytes)

	tok, err := callback.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "", tok.EventKey)
}

func TestDecodeRejectsWrongFieldCount(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "three fields", data: "paid:alice:123"},
		{name: "five fields", data: "paid:alice:123:key:extra"},
		{name: "no separators", data: "paid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := callback.Decode(tt.data)
			assert.ErrorIs(t, err, callback.ErrMalformedToken)
		})
	}
}

func TestDecodeRejectsUnknownAction(t *testing.T) {
	_, err := callback.Decode("refund:alice:123:key")
	assert.ErrorIs(t, err, callback.ErrMalformedToken)
}

func TestDecodeRejectsEmptyUsername(t *testing.T) {
	_, err := callback.Decode("paid::123:key")
	assert.ErrorIs(t, err, callback.ErrMalformedToken)
}
