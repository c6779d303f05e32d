// Package webhook exposes the inbound HTTP surface: the panel event
// endpoint plus health, test, and simulation helpers.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
	"github.com/hesabgar/hesabgar-bot/internal/health"
	"github.com/hesabgar/hesabgar-bot/internal/ratelimit"
	"github.com/hesabgar/hesabgar-bot/internal/repository"
)

// secretHeader carries the shared webhook secret when one is configured.
const secretHeader = "x-webhook-secret"

// maxBodyBytes bounds inbound request bodies.
const maxBodyBytes = 1 << 20

// Server handles the inbound webhook endpoints.
type Server struct {
	processor *Processor
	flags     repository.SyncFlagRepository
	admins    repository.AdminRepository
	checker   *health.Checker
	limiter   ratelimit.Limiter
	secret    string
	log       *slog.Logger
}

// NewServer constructs the webhook HTTP surface. An empty secret disables
// the header check; a nil limiter disables throttling.
func NewServer(
	processor *Processor,
	flags repository.SyncFlagRepository,
	admins repository.AdminRepository,
	checker *health.Checker,
	limiter ratelimit.Limiter,
	secret string,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		processor: processor,
		flags:     flags,
		admins:    admins,
		checker:   checker,
		limiter:   limiter,
		secret:    secret,
		log:       log,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("POST /webhook/simulate", s.handleSimulate)
	mux.HandleFunc("GET /webhook/test", s.handleTest)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

type webhookResponse struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

// handleWebhook accepts one event or a batch. Events are processed
// independently: a failing event is skipped and the rest of the batch
// continues, so the processed count can be lower than the total.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "invalid webhook secret"})
		return
	}

	if err := s.allow(r); err != nil {
		if errors.Is(err, ratelimit.ErrLimitExceeded) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"detail": "rate limit exceeded"})
			return
		}
		// Fail open on limiter backend errors.
		s.log.Warn("rate limiter unavailable, accepting request", slog.Any("error", err))
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "unreadable body"})
		return
	}

	events, err := parseEvents(body)
	if err != nil {
		s.log.Warn("rejecting unparseable webhook body", slog.Any("error", err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid payload"})
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Status:    "ok",
		Processed: s.processBatch(r.Context(), events),
		Total:     len(events),
	})
}

// processBatch runs events one at a time and returns how many completed
// without error. A failing event never aborts the rest of the batch.
func (s *Server) processBatch(ctx context.Context, events []*domain.Event) int {
	processed := 0
	for _, ev := range events {
		if err := s.processor.Process(ctx, ev); err != nil {
			s.log.Warn("event skipped",
				slog.String("action", ev.Action),
				slog.String("username", ev.Username),
				slog.Any("error", err),
			)
			continue
		}
		processed++
	}

	return processed
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.checker.Check(r.Context())

	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, report)
}

// handleTest reports webhook readiness without touching any state.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	synced := false
	if v, err := s.flags.Get(ctx, domain.FlagInitialSyncComplete); err == nil && v == "true" {
		synced = true
	}

	adminCount := 0
	if dests, err := s.admins.List(ctx); err == nil {
		adminCount = len(dests)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"webhook":               "active",
		"initial_sync_complete": synced,
		"admins":                adminCount,
	})
}

// handleSimulate runs a posted payload through the full pipeline, or a
// synthetic user_created event when the body is empty. Useful when wiring
// a new deployment.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "invalid webhook secret"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "unreadable body"})
		return
	}

	var events []*domain.Event
	if len(bytes.TrimSpace(body)) > 0 {
		events, err = parseEvents(body)
		if err != nil {
			s.log.Warn("rejecting unparseable simulate body", slog.Any("error", err))
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid payload"})
			return
		}
	} else {
		events = []*domain.Event{syntheticEvent(r.URL.Query().Get("username"))}
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Status:    "ok",
		Processed: s.processBatch(r.Context(), events),
		Total:     len(events),
	})
}

// syntheticEvent builds a default user_created event for simulate calls
// without a payload.
func syntheticEvent(username string) *domain.Event {
	if username == "" {
		username = "test_user"
	}

	tgID := int64(0)
	return &domain.Event{
		Action:   domain.ActionUserCreated,
		Username: username,
		SendAt:   time.Now().Unix(),
		User: &domain.EventUser{
			ID:       0,
			Username: username,
			Status:   domain.StatusActive,
			Expire:   time.Now().Add(30 * 24 * time.Hour).UTC().Format(time.RFC3339),
		},
		By: &domain.EventBy{Username: "simulator", TelegramID: &tgID},
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.secret == "" {
		return true
	}
	return r.Header.Get(secretHeader) == s.secret
}

func (s *Server) allow(r *http.Request) error {
	if s.limiter == nil {
		return nil
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	return s.limiter.Allow(r.Context(), host)
}

// parseEvents accepts either a JSON array of events or one bare event
// object, which is wrapped into a single-element batch.
func parseEvents(body []byte) ([]*domain.Event, error) {
	var events []*domain.Event
	if err := json.Unmarshal(body, &events); err == nil {
		return events, nil
	}

	var single domain.Event
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}

	return []*domain.Event{&single}, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
