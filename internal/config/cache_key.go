package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionMetaKey returns the dev-store key holding a session's serialized state.
func (r *CacheKeyStruct) SessionMetaKey(sessionID string) string {
	return fmt.Sprintf("player:session:%s:meta", sessionID)
}

// SessionQuestionsKey returns the dev-store key holding a session's question set.
func (r *CacheKeyStruct) SessionQuestionsKey(sessionID string) string {
	return fmt.Sprintf("player:session:%s:questions", sessionID)
}

// SessionAnswersKey returns the dev-store hash key of per-index answer states.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("player:session:%s:answers", sessionID)
}

// SessionEventsKey returns the dev-store set key of seen client event IDs,
// used to deduplicate retried answer submissions.
func (r *CacheKeyStruct) SessionEventsKey(sessionID string) string {
	return fmt.Sprintf("player:session:%s:events", sessionID)
}

var CacheKey = NewCacheKeyStruct()
