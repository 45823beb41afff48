package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-player/internal/config"
	"github.com/stemsi/exstem-player/internal/middleware"
	"github.com/stemsi/exstem-player/internal/model"
	"github.com/stemsi/exstem-player/internal/response"
	"github.com/stemsi/exstem-player/internal/telemetry"
	"github.com/stemsi/exstem-player/internal/validator"
)

const maxBatchCount = 10

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty origins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Handler serves the dev stub's session endpoints.
type Handler struct {
	store    SessionStore
	cfg      *config.Config
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler over the given store.
func NewHandler(store SessionStore, cfg *config.Config, log zerolog.Logger) *Handler {
	return &Handler{
		store:    store,
		cfg:      cfg,
		log:      log.With().Str("component", "devserver").Logger(),
		upgrader: buildUpgrader(cfg.AllowedOrigins),
	}
}

// CreateSession godoc
// POST /api/v1/dev/sessions
// Seeds a session with generated questions and returns it with a scoped
// bearer token. Dev-only; the production backend creates sessions elsewhere.
func (h *Handler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.store.CreateSession(c.Request.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Msg("Create session failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	token, err := middleware.MintSessionToken(h.cfg.JWTSecret, state.SessionID, h.cfg.JWTExpiry)
	if err != nil {
		h.log.Error().Err(err).Msg("Token mint failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.log.Info().
		Str("session_id", state.SessionID).
		Str("mode", string(state.Mode)).
		Int("questions", state.TotalQuestions).
		Msg("Session seeded")

	response.Success(c, http.StatusCreated, gin.H{"session": state, "token": token})
}

// GetState godoc
// GET /api/v1/player/sessions/:session_id/state
func (h *Handler) GetState(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	state, err := h.store.SessionState(c.Request.Context(), sessionID)
	if err != nil {
		h.failStore(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// GetQuestion godoc
// GET /api/v1/player/sessions/:session_id/questions/:index
func (h *Handler) GetQuestion(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snap, err := h.store.Question(c.Request.Context(), sessionID, index)
	if err != nil {
		h.failStore(c, err)
		return
	}
	response.Success(c, http.StatusOK, snap)
}

// GetQuestionBatch godoc
// GET /api/v1/player/sessions/:session_id/questions?from=&count=
// Prefetch endpoint: returns up to count snapshots starting at from.
func (h *Handler) GetQuestionBatch(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	from, err := strconv.Atoi(c.DefaultQuery("from", "1"))
	if err != nil || from < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	count, err := strconv.Atoi(c.DefaultQuery("count", "2"))
	if err != nil || count < 1 || count > maxBatchCount {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	snaps, err := h.store.Questions(c.Request.Context(), sessionID, from, count)
	if err != nil {
		h.failStore(c, err)
		return
	}
	if snaps == nil {
		snaps = []model.QuestionSnapshot{}
	}
	response.Success(c, http.StatusOK, gin.H{"questions": snaps})
}

// SubmitAnswer godoc
// POST /api/v1/player/sessions/:session_id/answers
// Applies one answer mutation; retried client event IDs are deduplicated.
func (h *Handler) SubmitAnswer(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var sub model.AnswerSubmission
	if fields := validator.Bind(c, &sub); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, err := h.store.SaveAnswer(c.Request.Context(), sessionID, sub)
	if err != nil {
		h.failStore(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"answer_state": answer})
}

// SubmitSession godoc
// POST /api/v1/player/sessions/:session_id/submit
// Finalizes the session and returns the review destination. A session past
// its deadline is finalized as EXPIRED rather than SUBMITTED.
func (h *Handler) SubmitSession(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	state, err := h.store.SessionState(ctx, sessionID)
	if err != nil {
		h.failStore(c, err)
		return
	}

	target := model.SessionStatusSubmitted
	if state.Status == model.SessionStatusExpired {
		target = model.SessionStatusExpired
	}

	final, err := h.store.Submit(ctx, sessionID, target)
	if err != nil {
		h.failStore(c, err)
		return
	}

	h.log.Info().
		Str("session_id", sessionID).
		Str("status", string(final.Status)).
		Int("answered", final.AnsweredCount).
		Msg("Session finalized")

	response.Success(c, http.StatusOK, model.SubmitResult{
		Status:    final.Status,
		ReviewURL: fmt.Sprintf("%s/%s", strings.TrimRight(h.cfg.ReviewBaseURL, "/"), sessionID),
	})
}

// TelemetryStream godoc
// WS /ws/v1/player/sessions/:session_id/telemetry
// Receives fire-and-forget player events. The dev stub only logs them.
func (h *Handler) TelemetryStream(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", sessionID).Logger()
	wsLog.Debug().Msg("Telemetry stream connected")

	for {
		var ev telemetry.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Telemetry stream closed")
			}
			return
		}

		wsLog.Info().
			Str("type", string(ev.Type)).
			Int("index", ev.Index).
			Time("at", ev.At).
			Msg("Telemetry event")

		_ = conn.WriteJSON(telemetry.Ack{Event: "success", Status: "received"})
	}
}

// ownedSession checks that the caller's token grants the session in the path.
func (h *Handler) ownedSession(c *gin.Context) (string, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return "", false
	}
	sessionID := c.Param("session_id")
	if claims.SessionID != sessionID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return "", false
	}
	return sessionID, true
}

// failStore maps store errors onto API error codes.
func (h *Handler) failStore(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, ErrQuestionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrIndexOutOfRange)
	case errors.Is(err, ErrSessionNotActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
	default:
		h.log.Error().Err(err).Msg("Store error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
