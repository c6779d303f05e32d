// Package panel is the HTTP client for the account panel API, used to pull
// the admin roster.
package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
	"github.com/hesabgar/hesabgar-bot/pkg/config"
)

const (
	// pageSize is the roster page length drained per request.
	pageSize = 50
	// tokenExpiryBuffer forces re-auth slightly before the token lapses.
	tokenExpiryBuffer = 60 * time.Second
	// tokenLifetime is assumed when the panel does not report an expiry.
	tokenLifetime = 24 * time.Hour

	requestTimeout = 15 * time.Second
)

// Client talks to the panel API with password-grant token auth.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	log      *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient constructs a panel client from configuration.
func NewClient(cfg config.PanelConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: requestTimeout},
		log:      log,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// authenticate fetches a fresh bearer token. Callers hold c.mu.
func (c *Client) authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("grant_type", "password")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/admin/token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request panel token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("panel token request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("decode panel token: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("panel returned an empty access token")
	}

	c.token = token.AccessToken
	c.tokenExpiry = time.Now().Add(tokenLifetime)
	c.log.Info("panel token refreshed")

	return nil
}

func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > tokenExpiryBuffer {
		return c.token, nil
	}

	if err := c.authenticate(ctx); err != nil {
		return "", err
	}

	return c.token, nil
}

// invalidateToken drops the cached token after a 401.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// get performs an authenticated GET, re-authenticating once on 401.
func (c *Client) get(ctx context.Context, path string, out any) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.bearerToken(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("build panel request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("request %s: %w", path, err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			c.log.Warn("panel token rejected, re-authenticating")
			c.invalidateToken()
			continue
		}

		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("panel request %s failed with status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode panel response: %w", err)
		}

		return nil
	}

	return fmt.Errorf("panel request %s: unauthorized after re-auth", path)
}

// GetAllAdmins drains the paginated roster endpoint and returns every admin.
func (c *Client) GetAllAdmins(ctx context.Context) ([]domain.PanelAdmin, error) {
	var all []domain.PanelAdmin

	for offset := 0; ; offset += pageSize {
		path := "/api/admins?offset=" + strconv.Itoa(offset) + "&limit=" + strconv.Itoa(pageSize)

		var page []domain.PanelAdmin
		if err := c.get(ctx, path, &page); err != nil {
			return nil, fmt.Errorf("fetch admin roster page at offset %d: %w", offset, err)
		}

		all = append(all, page...)

		if len(page) < pageSize {
			break
		}
	}

	c.log.Info("fetched panel admin roster", slog.Int("admins", len(all)))

	return all, nil
}

// TestConnection verifies that credentials work and the roster is reachable.
func (c *Client) TestConnection(ctx context.Context) error {
	var page []domain.PanelAdmin
	if err := c.get(ctx, "/api/admins?offset=0&limit=1", &page); err != nil {
		return fmt.Errorf("panel connection test: %w", err)
	}

	return nil
}
