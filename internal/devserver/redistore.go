package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-player/internal/config"
	"github.com/stemsi/exstem-player/internal/model"
)

// RedisStore keeps dev sessions in Redis so they survive dev-server restarts.
// It mirrors the production backend's layout: a per-session answers hash plus
// a set of seen client event IDs for idempotency. Operations are not
// transactional; this is a dev stub, not a production store.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a RedisStore on an already-connected client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) CreateSession(ctx context.Context, req model.CreateSessionRequest) (*model.SessionState, error) {
	state := newSessionState(req)
	if err := s.saveState(ctx, &state); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(seedQuestions(req.QuestionCount))
	if err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.SessionQuestionsKey(state.SessionID), raw, 0).Err(); err != nil {
		return nil, fmt.Errorf("store questions: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) SessionState(ctx context.Context, sessionID string) (*model.SessionState, error) {
	return s.getState(ctx, sessionID)
}

func (s *RedisStore) Question(ctx context.Context, sessionID string, index int) (*model.QuestionSnapshot, error) {
	questions, err := s.questions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if index < 1 || index > len(questions) {
		return nil, ErrQuestionNotFound
	}
	snap := questions[index-1]
	answer, err := s.answer(ctx, sessionID, index)
	if err != nil {
		return nil, err
	}
	snap.AnswerState = answer
	return &snap, nil
}

func (s *RedisStore) Questions(ctx context.Context, sessionID string, from, count int) ([]model.QuestionSnapshot, error) {
	questions, err := s.questions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if from < 1 {
		from = 1
	}
	snaps := make([]model.QuestionSnapshot, 0, count)
	for i := from; i < from+count && i <= len(questions); i++ {
		snap := questions[i-1]
		answer, err := s.answer(ctx, sessionID, i)
		if err != nil {
			return nil, err
		}
		snap.AnswerState = answer
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *RedisStore) SaveAnswer(ctx context.Context, sessionID string, sub model.AnswerSubmission) (*model.AnswerState, error) {
	state, err := s.getState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Status.Terminal() {
		return nil, ErrSessionNotActive
	}
	if sub.Index < 1 || sub.Index > state.TotalQuestions {
		return nil, ErrQuestionNotFound
	}

	current, err := s.answer(ctx, sessionID, sub.Index)
	if err != nil {
		return nil, err
	}

	// Idempotency: SADD reports 0 when the event ID was already seen.
	added, err := s.rdb.SAdd(ctx, config.CacheKey.SessionEventsKey(sessionID), sub.ClientEventID).Result()
	if err != nil {
		return nil, fmt.Errorf("dedupe event: %w", err)
	}
	if added == 0 {
		return &current, nil
	}

	if sub.SelectedIndex != nil {
		if !current.Answered() {
			state.AnsweredCount++
			if err := s.saveState(ctx, state); err != nil {
				return nil, err
			}
		}
		current.SelectedIndex = sub.SelectedIndex
	}
	if sub.MarkedForReview != nil {
		current.MarkedForReview = *sub.MarkedForReview
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encode answer: %w", err)
	}
	field := strconv.Itoa(sub.Index)
	if err := s.rdb.HSet(ctx, config.CacheKey.SessionAnswersKey(sessionID), field, raw).Err(); err != nil {
		return nil, fmt.Errorf("store answer: %w", err)
	}
	return &current, nil
}

func (s *RedisStore) Submit(ctx context.Context, sessionID string, status model.SessionStatus) (*model.SessionState, error) {
	state, err := s.getState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !state.Status.Terminal() {
		state.Status = status
		if err := s.saveState(ctx, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// ─── Internals ──────────────────────────────────────────────────────────────

func (s *RedisStore) getState(ctx context.Context, sessionID string) (*model.SessionState, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.SessionMetaKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var state model.SessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if expire(&state) {
		if err := s.saveState(ctx, &state); err != nil {
			return nil, err
		}
	}
	return &state, nil
}

func (s *RedisStore) saveState(ctx context.Context, state *model.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.SessionMetaKey(state.SessionID), raw, 0).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) questions(ctx context.Context, sessionID string) ([]model.QuestionSnapshot, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.SessionQuestionsKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}

	var questions []model.QuestionSnapshot
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return questions, nil
}

func (s *RedisStore) answer(ctx context.Context, sessionID string, index int) (model.AnswerState, error) {
	raw, err := s.rdb.HGet(ctx, config.CacheKey.SessionAnswersKey(sessionID), strconv.Itoa(index)).Result()
	if errors.Is(err, redis.Nil) {
		return model.AnswerState{}, nil
	}
	if err != nil {
		return model.AnswerState{}, fmt.Errorf("get answer: %w", err)
	}

	var answer model.AnswerState
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return model.AnswerState{}, fmt.Errorf("decode answer: %w", err)
	}
	return answer, nil
}
