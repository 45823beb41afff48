package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-player/internal/config"
	"github.com/stemsi/exstem-player/internal/response"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg := &config.Config{
		APIBaseURL:  ts.URL,
		APIToken:    "test-token",
		HTTPTimeout: 2 * time.Second,
	}
	return New(cfg, zerolog.Nop()), ts
}

func writeEnvelope(w http.ResponseWriter, status int, data interface{}, errBody *response.ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":  data,
		"error": errBody,
	})
}

func TestGetSessionStateDecodesEnvelope(t *testing.T) {
	var gotPath, gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"session_id":      "sess-1",
			"mode":            "EXAM",
			"status":          "ACTIVE",
			"current_index":   3,
			"total_questions": 20,
			"answered_count":  2,
		}, nil)
	})

	state, err := client.GetSessionState(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetSessionState: %v", err)
	}
	if gotPath != "/api/v1/player/sessions/sess-1/state" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if state.CurrentIndex != 3 || state.TotalQuestions != 20 {
		t.Errorf("state = %+v", state)
	}
}

func TestGetQuestionBatchQuery(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") != "4" || r.URL.Query().Get("count") != "2" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"questions": []map[string]interface{}{
				{"index": 4, "question_id": "q4", "text": "soal 4"},
				{"index": 5, "question_id": "q5", "text": "soal 5"},
			},
		}, nil)
	})

	snaps, err := client.GetQuestionBatch(context.Background(), "sess-1", 4, 2)
	if err != nil {
		t.Fatalf("GetQuestionBatch: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Index != 4 || snaps[1].Index != 5 {
		t.Errorf("snaps = %+v", snaps)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   response.ErrCode
		check  func(error) bool
	}{
		{"not found", http.StatusNotFound, response.ErrNotFound, IsNotFound},
		{"forbidden", http.StatusForbidden, response.ErrForbidden, IsForbidden},
		{"unauthorized", http.StatusUnauthorized, response.ErrTokenInvalid, IsForbidden},
		{"server error", http.StatusInternalServerError, response.ErrInternal, IsTransient},
		{"conflict", http.StatusConflict, response.ErrSessionNotActive, IsTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tt.status, nil, &response.ErrorBody{
					Code:    tt.code,
					Message: response.GetMessage(tt.code),
				})
			})

			_, err := client.GetSessionState(context.Background(), "sess-1")
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("wrong kind for %v", err)
			}
			var ae *Error
			if !errors.As(err, &ae) || ae.Code != tt.code {
				t.Errorf("code = %v, want %v", err, tt.code)
			}
		})
	}
}

func TestConnectionFailureIsTransient(t *testing.T) {
	client, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ts.Close()

	_, err := client.GetSessionState(context.Background(), "sess-1")
	if !IsTransient(err) {
		t.Errorf("connection failure should be transient, got %v", err)
	}
}

func TestTelemetryURLSchemeAndToken(t *testing.T) {
	cfg := &config.Config{APIBaseURL: "http://localhost:8080", APIToken: "tok", HTTPTimeout: time.Second}
	client := New(cfg, zerolog.Nop())

	got := client.TelemetryURL("sess-1")
	if !strings.HasPrefix(got, "ws://localhost:8080/ws/v1/player/sessions/sess-1/telemetry") {
		t.Errorf("url = %q", got)
	}
	if !strings.Contains(got, "token=tok") {
		t.Errorf("url missing token: %q", got)
	}

	cfg.APIBaseURL = "https://exam.example.com"
	client = New(cfg, zerolog.Nop())
	if got := client.TelemetryURL("s"); !strings.HasPrefix(got, "wss://exam.example.com/") {
		t.Errorf("https should map to wss, got %q", got)
	}
}
