// Package player implements the session-progression engine behind the exam
// player view: a per-view state store, latency-hiding question prefetch, an
// optimistic answer pipeline with guaranteed rollback, and the submission and
// expiry flow. It performs no rendering; the consuming view reads state
// through getters and reacts to the hooks.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-player/internal/api"
	"github.com/stemsi/exstem-player/internal/config"
	"github.com/stemsi/exstem-player/internal/model"
	"github.com/stemsi/exstem-player/internal/scheduler"
	"github.com/stemsi/exstem-player/internal/store"
	"github.com/stemsi/exstem-player/internal/telemetry"
)

// ErrIndexOutOfRange is returned by Navigate for positions outside
// [1, totalQuestions].
var ErrIndexOutOfRange = errors.New("question index out of range")

// Notifier surfaces transient, user-visible notifications.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(string)

func (f NotifierFunc) Notify(message string) { f(message) }

// Telemetry is the subset of the telemetry stream the player depends on.
type Telemetry interface {
	Record(telemetry.Event)
	Flush(ctx context.Context) error
}

// Hooks are the player's outbound signals to the consuming view.
type Hooks struct {
	// OnTerminal fires exactly once when a terminal status is observed.
	// The view must redirect to the review surface. reviewURL is empty when
	// the terminal status was observed via background refresh rather than
	// an own submission.
	OnTerminal func(status model.SessionStatus, reviewURL string)
	// OnChange fires after every state change worth re-rendering for.
	OnChange func()
}

// Player drives one exam/practice session. Construct one per session view;
// never share across sessions.
type Player struct {
	sessionID string
	cfg       *config.Config
	api       *api.Client
	store     *store.Store
	tele      Telemetry
	notifier  Notifier
	hooks     Hooks
	log       zerolog.Logger

	refresh *scheduler.Task

	subMu sync.Mutex // serializes submission (user vs. expiry timer)

	mu           sync.Mutex
	expiry       *time.Timer
	terminalDone bool
}

// New creates a Player for sessionID. tele and notifier may be nil.
func New(sessionID string, cfg *config.Config, client *api.Client, tele Telemetry, notifier Notifier, hooks Hooks, log zerolog.Logger) *Player {
	return &Player{
		sessionID: sessionID,
		cfg:       cfg,
		api:       client,
		store:     store.New(),
		tele:      tele,
		notifier:  notifier,
		hooks:     hooks,
		log:       log.With().Str("component", "player").Str("session_id", sessionID).Logger(),
	}
}

// Load performs the initial state fetch, starts background revalidation, arms
// the exam expiry timer, and resolves the question at the current position.
// A load failure is fatal to the view and returned as-is.
//
// ctx governs the player's background work; pass the view's lifetime context.
func (p *Player) Load(ctx context.Context) error {
	state, err := p.api.GetSessionState(ctx, p.sessionID)
	if err != nil {
		return fmt.Errorf("load session state: %w", err)
	}
	if state.CurrentIndex < 1 {
		state.CurrentIndex = 1
	}
	if state.CurrentIndex > state.TotalQuestions {
		state.CurrentIndex = state.TotalQuestions
	}
	p.store.SetSession(*state)

	p.refresh = scheduler.New(p.cfg.StateRefreshInterval, p.refreshEligible, p.refreshState)
	go p.refresh.Start(ctx)

	if state.Status.Terminal() {
		p.finishTerminal(state.Status, "")
		p.changed()
		return nil
	}

	if deadline, ok := state.Deadline(); ok {
		p.armExpiry(time.Until(deadline))
	}

	seq, cached := p.store.BeginNavigation(state.CurrentIndex)
	if !cached {
		p.fetchQuestion(ctx, state.CurrentIndex, seq)
	}
	go p.prefetch(ctx, state.CurrentIndex+1)

	p.changed()
	return nil
}

// ─── State getters ──────────────────────────────────────────────────────────

// State returns a copy of the cached session state.
func (p *Player) State() (model.SessionState, bool) {
	return p.store.Session()
}

// CurrentQuestion returns the snapshot currently presented to the user. While
// a navigation fetch is in flight this remains the previously displayed
// snapshot, so the view never renders a blank question when one was visible.
func (p *Player) CurrentQuestion() (model.QuestionSnapshot, bool) {
	return p.store.Displayed()
}

// QuestionLoading reports whether a navigation fetch is still in flight.
func (p *Player) QuestionLoading() bool {
	return p.store.Fetching()
}

// Remaining returns the time left on the exam clock. ok is false for untimed
// sessions.
func (p *Player) Remaining() (time.Duration, bool) {
	state, loaded := p.store.Session()
	if !loaded {
		return 0, false
	}
	deadline, ok := state.Deadline()
	if !ok {
		return 0, false
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	return d, true
}

// ─── Navigation & prefetch ──────────────────────────────────────────────────

// Navigate moves the client-side cursor to a 1-based position and triggers
// fetch plus prefetch. The position is a pure client value until submission —
// no network round trip updates it. Out-of-range positions are rejected with
// no effect.
func (p *Player) Navigate(ctx context.Context, position int) error {
	state, loaded := p.store.Session()
	if !loaded {
		return errors.New("session not loaded")
	}
	if position < 1 || position > state.TotalQuestions {
		return ErrIndexOutOfRange
	}

	p.store.Patch(model.StatePatch{CurrentIndex: &position})
	p.record(telemetry.Event{Type: telemetry.EventNavigated, Index: position})

	seq, cached := p.store.BeginNavigation(position)
	if !cached {
		go p.fetchQuestion(ctx, position, seq)
	}
	go p.prefetch(ctx, position+1)

	p.changed()
	return nil
}

// fetchQuestion resolves one navigation fetch. A stale result (superseded by
// a later navigation) is cached but never displayed.
func (p *Player) fetchQuestion(ctx context.Context, index int, seq uint64) {
	snap, err := p.api.GetQuestion(ctx, p.sessionID, index)
	if err != nil {
		p.store.FailNavigation(seq)
		p.log.Warn().Err(err).Int("index", index).Msg("Question fetch failed")
		p.notify("Gagal memuat soal. Silakan coba lagi.")
		p.changed()
		return
	}
	p.store.CompleteNavigation(seq, *snap)
	p.changed()
}

// prefetch speculatively loads up to PrefetchCount questions starting at
// from. Failures are swallowed: prefetch is a latency optimization, never a
// correctness requirement.
func (p *Player) prefetch(ctx context.Context, from int) {
	state, loaded := p.store.Session()
	if !loaded {
		return
	}
	count := min(p.cfg.PrefetchCount, state.TotalQuestions-from+1)
	if count <= 0 {
		return
	}
	snaps, err := p.api.GetQuestionBatch(ctx, p.sessionID, from, count)
	if err != nil {
		p.log.Debug().Err(err).Int("from", from).Msg("Prefetch failed")
		return
	}
	for _, snap := range snaps {
		p.store.PutPrefetched(snap)
	}
}

// ─── Answer mutation pipeline ───────────────────────────────────────────────

// SelectOption optimistically records the chosen option, sends it to the
// backend with a fresh idempotency token, and reconciles with the server's
// confirmed answer state — or reverts to the recorded previous value on
// failure. No-op if the question is not cached. Never retried automatically.
func (p *Player) SelectOption(ctx context.Context, questionID string, index, choiceIndex int) error {
	snap, ok := p.store.Snapshot(index)
	if !ok {
		return nil
	}

	proposed := snap.AnswerState
	choice := choiceIndex
	proposed.SelectedIndex = &choice

	mut, ok := p.store.BeginMutation(index, proposed)
	if !ok {
		return nil
	}
	p.changed()

	eventID := uuid.New().String()
	confirmed, err := p.api.SubmitAnswer(ctx, p.sessionID, model.AnswerSubmission{
		Index:         index,
		QuestionID:    questionID,
		SelectedIndex: &choice,
		ClientEventID: eventID,
	})
	if err != nil {
		if p.store.RevertMutation(mut) {
			p.notify("Jawaban gagal disimpan. Silakan coba lagi.")
			p.changed()
		}
		return err
	}

	if p.store.ResolveMutation(mut, *confirmed) {
		if !mut.Previous.Answered() && confirmed.Answered() {
			p.store.IncrementAnswered()
		}
		p.record(telemetry.Event{Type: telemetry.EventAnswerSaved, Index: index, ClientEventID: eventID})
		p.changed()
	}
	return nil
}

// ToggleMarkForReview is the mark-for-review counterpart of SelectOption.
// It never affects the answered count.
func (p *Player) ToggleMarkForReview(ctx context.Context, questionID string, index int, marked bool) error {
	snap, ok := p.store.Snapshot(index)
	if !ok {
		return nil
	}

	proposed := snap.AnswerState
	proposed.MarkedForReview = marked

	mut, ok := p.store.BeginMutation(index, proposed)
	if !ok {
		return nil
	}
	p.changed()

	eventID := uuid.New().String()
	confirmed, err := p.api.SubmitAnswer(ctx, p.sessionID, model.AnswerSubmission{
		Index:           index,
		QuestionID:      questionID,
		MarkedForReview: &marked,
		ClientEventID:   eventID,
	})
	if err != nil {
		if p.store.RevertMutation(mut) {
			p.notify("Penanda gagal disimpan. Silakan coba lagi.")
			p.changed()
		}
		return err
	}

	if p.store.ResolveMutation(mut, *confirmed) {
		p.record(telemetry.Event{Type: telemetry.EventMarkToggled, Index: index, ClientEventID: eventID})
		p.changed()
	}
	return nil
}

// ─── Submission & expiry ────────────────────────────────────────────────────

// Submit flushes pending telemetry, finalizes the session server-side, and
// raises the terminal redirect. On failure the session stays active and the
// user may retry manually.
func (p *Player) Submit(ctx context.Context) error {
	return p.finalize(ctx)
}

// Expire is invoked when the exam clock reaches zero. It follows the exact
// submission path — including the telemetry flush — so expiry never silently
// loses answers. If the submission fails the session stays active locally;
// the next background refresh observes the server-side EXPIRED status and
// raises the terminal redirect.
func (p *Player) Expire(ctx context.Context) error {
	state, loaded := p.store.Session()
	if !loaded || state.Status.Terminal() {
		return nil
	}
	p.record(telemetry.Event{Type: telemetry.EventExpired, Index: state.CurrentIndex})
	return p.finalize(ctx)
}

func (p *Player) finalize(ctx context.Context) error {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	state, loaded := p.store.Session()
	if !loaded {
		return errors.New("session not loaded")
	}
	if state.Status.Terminal() {
		return nil
	}

	if p.tele != nil {
		flushCtx, cancel := context.WithTimeout(ctx, p.cfg.HTTPTimeout)
		if err := p.tele.Flush(flushCtx); err != nil {
			p.log.Warn().Err(err).Msg("Telemetry flush incomplete")
		}
		cancel()
	}

	result, err := p.api.SubmitSession(ctx, p.sessionID)
	if err != nil {
		p.log.Warn().Err(err).Msg("Session submission failed")
		p.notify("Gagal mengumpulkan ujian. Silakan coba lagi.")
		return err
	}

	status := result.Status
	p.store.Patch(model.StatePatch{Status: &status})
	if p.refresh != nil {
		p.refresh.Poke()
	}
	p.finishTerminal(status, result.ReviewURL)
	p.changed()
	return nil
}

// ─── Background refresh ─────────────────────────────────────────────────────

func (p *Player) refreshEligible() bool {
	state, loaded := p.store.Session()
	return loaded && state.RefreshEligible()
}

// refreshState revalidates the session summary. Failures are silently retried
// on the next tick. The local navigation cursor is preserved across refreshes.
func (p *Player) refreshState(ctx context.Context) {
	state, err := p.api.GetSessionState(ctx, p.sessionID)
	if err != nil {
		p.log.Debug().Err(err).Msg("State refresh failed")
		return
	}
	merged := p.store.MergeSession(*state)
	if merged.Status.Terminal() {
		p.finishTerminal(merged.Status, "")
	}
	p.changed()
}

// ─── Internals ──────────────────────────────────────────────────────────────

func (p *Player) armExpiry(in time.Duration) {
	if in <= 0 {
		go p.Expire(context.Background())
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiry = time.AfterFunc(in, func() {
		if err := p.Expire(context.Background()); err != nil {
			p.log.Warn().Err(err).Msg("Expiry submission failed")
		}
	})
}

// finishTerminal raises the terminal signal exactly once and stops the expiry
// timer.
func (p *Player) finishTerminal(status model.SessionStatus, reviewURL string) {
	p.mu.Lock()
	if p.terminalDone {
		p.mu.Unlock()
		return
	}
	p.terminalDone = true
	if p.expiry != nil {
		p.expiry.Stop()
	}
	p.mu.Unlock()

	p.log.Info().Str("status", string(status)).Msg("Session reached terminal state")
	if p.hooks.OnTerminal != nil {
		p.hooks.OnTerminal(status, reviewURL)
	}
}

func (p *Player) record(ev telemetry.Event) {
	if p.tele == nil {
		return
	}
	ev.SessionID = p.sessionID
	p.tele.Record(ev)
}

func (p *Player) notify(message string) {
	if p.notifier != nil {
		p.notifier.Notify(message)
	}
}

func (p *Player) changed() {
	if p.hooks.OnChange != nil {
		p.hooks.OnChange()
	}
}
