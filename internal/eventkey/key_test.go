package eventkey_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hesabgar/hesabgar-bot/internal/eventkey"
)

func TestNewIsDeterministic(t *testing.T) {
	first := eventkey.New(eventkey.KindCreated, "alice", 1700000000)
	second := eventkey.New(eventkey.KindCreated, "alice", 1700000000)

	assert.Equal(t, first, second)
	assert.Equal(t, "created_alice_1700000000", first)
}

func TestNewDistinguishesInputs(t *testing.T) {
	base := eventkey.New(eventkey.KindUpdated, "alice", 1700000000)

	assert.NotEqual(t, base, eventkey.New(eventkey.KindCreated, "alice", 1700000000))
	assert.NotEqual(t, base, eventkey.New(eventkey.KindUpdated, "bob", 1700000000))
	assert.NotEqual(t, base, eventkey.New(eventkey.KindUpdated, "alice", 1700000001))
}
