package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
	"github.com/hesabgar/hesabgar-bot/pkg/config"
)

type panelStub struct {
	mux        *http.ServeMux
	tokens     int
	rejectNext int // reject this many authed requests with 401
	admins     []domain.PanelAdmin
}

func newPanelStub(adminCount int) *panelStub {
	stub := &panelStub{mux: http.NewServeMux()}

	for i := 0; i < adminCount; i++ {
		id := int64(1000 + i)
		stub.admins = append(stub.admins, domain.PanelAdmin{
			Username:   fmt.Sprintf("admin%02d", i),
			TelegramID: &id,
		})
	}

	stub.mux.HandleFunc("POST /api/admin/token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != "root" || r.FormValue("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		stub.tokens++
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": fmt.Sprintf("token-%d", stub.tokens),
			"token_type":   "bearer",
		})
	})

	stub.mux.HandleFunc("GET /api/admins", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if stub.rejectNext > 0 {
			stub.rejectNext--
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		end := offset + limit
		if offset > len(stub.admins) {
			offset = len(stub.admins)
		}
		if end > len(stub.admins) {
			end = len(stub.admins)
		}

		_ = json.NewEncoder(w).Encode(stub.admins[offset:end])
	})

	return stub
}

func newTestClient(t *testing.T, stub *panelStub) *Client {
	t.Helper()

	server := httptest.NewServer(stub.mux)
	t.Cleanup(server.Close)

	return NewClient(config.PanelConfig{
		BaseURL:  server.URL,
		Username: "root",
		Password: "secret",
	}, nil)
}

func TestGetAllAdminsDrainsPages(t *testing.T) {
	stub := newPanelStub(120)
	client := newTestClient(t, stub)

	admins, err := client.GetAllAdmins(context.Background())
	require.NoError(t, err)

	assert.Len(t, admins, 120)
	assert.Equal(t, "admin00", admins[0].Username)
	assert.Equal(t, "admin119", admins[119].Username)
	// One token covers all three pages.
	assert.Equal(t, 1, stub.tokens)
}

func TestGetAllAdminsExactPageBoundary(t *testing.T) {
	stub := newPanelStub(pageSize)
	client := newTestClient(t, stub)

	admins, err := client.GetAllAdmins(context.Background())
	require.NoError(t, err)
	assert.Len(t, admins, pageSize)
}

func TestGetAllAdminsEmptyRoster(t *testing.T) {
	stub := newPanelStub(0)
	client := newTestClient(t, stub)

	admins, err := client.GetAllAdmins(context.Background())
	require.NoError(t, err)
	assert.Empty(t, admins)
}

func TestReauthenticatesOnceOn401(t *testing.T) {
	stub := newPanelStub(3)
	stub.rejectNext = 1
	client := newTestClient(t, stub)

	admins, err := client.GetAllAdmins(context.Background())
	require.NoError(t, err)

	assert.Len(t, admins, 3)
	assert.Equal(t, 2, stub.tokens)
}

func TestPersistent401Fails(t *testing.T) {
	stub := newPanelStub(3)
	stub.rejectNext = 10
	client := newTestClient(t, stub)

	_, err := client.GetAllAdmins(context.Background())
	assert.Error(t, err)
}

func TestAuthFailureSurfaces(t *testing.T) {
	stub := newPanelStub(3)
	server := httptest.NewServer(stub.mux)
	t.Cleanup(server.Close)

	client := NewClient(config.PanelConfig{
		BaseURL:  server.URL,
		Username: "root",
		Password: "wrong",
	}, nil)

	_, err := client.GetAllAdmins(context.Background())
	assert.Error(t, err)
}

func TestTestConnection(t *testing.T) {
	stub := newPanelStub(3)
	client := newTestClient(t, stub)

	assert.NoError(t, client.TestConnection(context.Background()))
}
