package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-player/internal/config"
	"github.com/stemsi/exstem-player/internal/model"
	"github.com/stemsi/exstem-player/internal/response"
)

// Client talks to the backend's thin session endpoints. It is safe for
// concurrent use; the bearer token must be set before the first call.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	log     zerolog.Logger
}

// New creates a Client from configuration.
func New(cfg *config.Config, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		token:   cfg.APIToken,
		httpc:   &http.Client{Timeout: cfg.HTTPTimeout},
		log:     log.With().Str("component", "api_client").Logger(),
	}
}

// SetToken replaces the bearer token attached to every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope mirrors the backend's standard response shape.
type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error,omitempty"`
}

// do performs one round trip and decodes the envelope's data into out.
// Any non-2xx status or transport failure is returned as an *Error.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return transportError(fmt.Errorf("decode response: %w", err))
		}
		return classify(resp.StatusCode, nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify(resp.StatusCode, env.Error)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return transportError(fmt.Errorf("decode data: %w", err))
		}
	}
	return nil
}

// GetSessionState fetches the thin session state.
func (c *Client) GetSessionState(ctx context.Context, sessionID string) (*model.SessionState, error) {
	var state model.SessionState
	path := fmt.Sprintf("/api/v1/player/sessions/%s/state", url.PathEscape(sessionID))
	if err := c.do(ctx, http.MethodGet, path, nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetQuestion fetches the snapshot at a 1-based index.
func (c *Client) GetQuestion(ctx context.Context, sessionID string, index int) (*model.QuestionSnapshot, error) {
	var snap model.QuestionSnapshot
	path := fmt.Sprintf("/api/v1/player/sessions/%s/questions/%d", url.PathEscape(sessionID), index)
	if err := c.do(ctx, http.MethodGet, path, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetQuestionBatch fetches up to count snapshots starting at from.
func (c *Client) GetQuestionBatch(ctx context.Context, sessionID string, from, count int) ([]model.QuestionSnapshot, error) {
	var data struct {
		Questions []model.QuestionSnapshot `json:"questions"`
	}
	path := fmt.Sprintf("/api/v1/player/sessions/%s/questions?from=%d&count=%d",
		url.PathEscape(sessionID), from, count)
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data.Questions, nil
}

// SubmitAnswer sends one answer mutation and returns the server-confirmed
// answer state, which is authoritative over the optimistic local value.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID string, sub model.AnswerSubmission) (*model.AnswerState, error) {
	var data struct {
		AnswerState model.AnswerState `json:"answer_state"`
	}
	path := fmt.Sprintf("/api/v1/player/sessions/%s/answers", url.PathEscape(sessionID))
	if err := c.do(ctx, http.MethodPost, path, sub, &data); err != nil {
		return nil, err
	}
	return &data.AnswerState, nil
}

// SubmitSession finalizes the session server-side and returns the review
// destination.
func (c *Client) SubmitSession(ctx context.Context, sessionID string) (*model.SubmitResult, error) {
	var result model.SubmitResult
	path := fmt.Sprintf("/api/v1/player/sessions/%s/submit", url.PathEscape(sessionID))
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreatedSession is the dev server's session-seeding response.
type CreatedSession struct {
	Session model.SessionState `json:"session"`
	Token   string             `json:"token"`
}

// CreateDevSession seeds a session on the development stub server and stores
// the returned bearer token on the client. Not available against production.
func (c *Client) CreateDevSession(ctx context.Context, req model.CreateSessionRequest) (*CreatedSession, error) {
	var created CreatedSession
	if err := c.do(ctx, http.MethodPost, "/api/v1/dev/sessions", req, &created); err != nil {
		return nil, err
	}
	c.SetToken(created.Token)
	return &created, nil
}

// TelemetryURL derives the WebSocket telemetry endpoint for a session,
// carrying the bearer token as a query parameter the way the backend's
// WebSocket auth expects it.
func (c *Client) TelemetryURL(sessionID string) string {
	wsBase := c.baseURL
	if strings.HasPrefix(wsBase, "https://") {
		wsBase = "wss://" + strings.TrimPrefix(wsBase, "https://")
	} else if strings.HasPrefix(wsBase, "http://") {
		wsBase = "ws://" + strings.TrimPrefix(wsBase, "http://")
	}
	return fmt.Sprintf("%s/ws/v1/player/sessions/%s/telemetry?token=%s",
		wsBase, url.PathEscape(sessionID), url.QueryEscape(c.token))
}
