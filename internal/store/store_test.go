package store

import (
	"testing"

	"github.com/stemsi/exstem-player/internal/model"
)

func snap(index int) model.QuestionSnapshot {
	return model.QuestionSnapshot{
		Index:      index,
		QuestionID: "q-" + string(rune('0'+index)),
		Text:       "soal",
		Options:    []string{"a", "b", "c", "d", "e"},
	}
}

func intPtr(v int) *int { return &v }

func TestPatchMergesPartialState(t *testing.T) {
	s := New()
	s.SetSession(model.SessionState{SessionID: "s1", Status: model.SessionStatusActive, CurrentIndex: 1, TotalQuestions: 10})

	state, ok := s.Patch(model.StatePatch{CurrentIndex: intPtr(4)})
	if !ok {
		t.Fatal("expected patch to apply")
	}
	if state.CurrentIndex != 4 {
		t.Errorf("CurrentIndex = %d, want 4", state.CurrentIndex)
	}
	if state.TotalQuestions != 10 {
		t.Errorf("TotalQuestions = %d, want 10 (untouched)", state.TotalQuestions)
	}
}

func TestMergeSessionKeepsLocalCursor(t *testing.T) {
	s := New()
	s.SetSession(model.SessionState{SessionID: "s1", CurrentIndex: 7, AnsweredCount: 2})

	merged := s.MergeSession(model.SessionState{SessionID: "s1", CurrentIndex: 1, AnsweredCount: 5})
	if merged.CurrentIndex != 7 {
		t.Errorf("CurrentIndex = %d, want local cursor 7", merged.CurrentIndex)
	}
	if merged.AnsweredCount != 5 {
		t.Errorf("AnsweredCount = %d, want server value 5", merged.AnsweredCount)
	}
}

func TestDisplayedKeptWhileFetching(t *testing.T) {
	s := New()

	seq1, cached := s.BeginNavigation(1)
	if cached {
		t.Fatal("index 1 should not be cached yet")
	}
	s.CompleteNavigation(seq1, snap(1))

	// Navigate to an uncached index: the old snapshot must stay visible.
	_, cached = s.BeginNavigation(2)
	if cached {
		t.Fatal("index 2 should not be cached")
	}
	if !s.Fetching() {
		t.Error("expected fetching flag while navigation fetch in flight")
	}
	displayed, ok := s.Displayed()
	if !ok || displayed.Index != 1 {
		t.Errorf("displayed = %+v, want previous snapshot (index 1)", displayed)
	}
}

func TestStaleNavigationFetchNeverDisplayed(t *testing.T) {
	s := New()

	seqA, _ := s.BeginNavigation(2)
	seqB, _ := s.BeginNavigation(3)

	// The fetch for index 3 lands first, then the stale one for index 2.
	if got := s.CompleteNavigation(seqB, snap(3)); !got {
		t.Error("latest navigation fetch should be displayed")
	}
	if got := s.CompleteNavigation(seqA, snap(2)); got {
		t.Error("superseded navigation fetch must not be displayed")
	}

	displayed, _ := s.Displayed()
	if displayed.Index != 3 {
		t.Errorf("displayed index = %d, want 3", displayed.Index)
	}
	// The stale result is still cached for a later revisit.
	if _, ok := s.Snapshot(2); !ok {
		t.Error("stale navigation result should still be cached")
	}
}

func TestPrefetchNeverOverwritesNavigationFetch(t *testing.T) {
	s := New()

	seq, _ := s.BeginNavigation(2)
	fresh := snap(2)
	fresh.Text = "navigasi"
	s.CompleteNavigation(seq, fresh)

	late := snap(2)
	late.Text = "prefetch basi"
	s.PutPrefetched(late)

	got, _ := s.Snapshot(2)
	if got.Text != "navigasi" {
		t.Errorf("snapshot text = %q, want navigation result to win", got.Text)
	}
}

func TestPrefetchFillsCacheWithoutTouchingDisplayed(t *testing.T) {
	s := New()
	seq, _ := s.BeginNavigation(1)
	s.CompleteNavigation(seq, snap(1))

	s.PutPrefetched(snap(2))
	s.PutPrefetched(snap(3))

	displayed, _ := s.Displayed()
	if displayed.Index != 1 {
		t.Errorf("displayed index = %d, want 1", displayed.Index)
	}

	// Prefetched entries serve later navigation from cache.
	_, cached := s.BeginNavigation(2)
	if !cached {
		t.Error("prefetched index 2 should be served from cache")
	}
	displayed, _ = s.Displayed()
	if displayed.Index != 2 {
		t.Errorf("displayed index = %d, want 2", displayed.Index)
	}
}

func TestMutationResolveAndRevert(t *testing.T) {
	s := New()
	seq, _ := s.BeginNavigation(1)
	s.CompleteNavigation(seq, snap(1))

	proposed := model.AnswerState{SelectedIndex: intPtr(2)}
	mut, ok := s.BeginMutation(1, proposed)
	if !ok {
		t.Fatal("expected mutation to begin")
	}
	if mut.Previous.Answered() {
		t.Error("previous state should be unanswered")
	}

	// Optimistic value is visible immediately.
	displayed, _ := s.Displayed()
	if displayed.AnswerState.SelectedIndex == nil || *displayed.AnswerState.SelectedIndex != 2 {
		t.Errorf("optimistic answer not applied: %+v", displayed.AnswerState)
	}

	// Revert restores the recorded previous value.
	if !s.RevertMutation(mut) {
		t.Fatal("expected revert to apply")
	}
	displayed, _ = s.Displayed()
	if displayed.AnswerState.Answered() {
		t.Errorf("answer state = %+v, want reverted to unanswered", displayed.AnswerState)
	}
}

func TestStaleMutationResponseDiscarded(t *testing.T) {
	s := New()
	seq, _ := s.BeginNavigation(1)
	s.CompleteNavigation(seq, snap(1))

	first, _ := s.BeginMutation(1, model.AnswerState{SelectedIndex: intPtr(0)})
	second, _ := s.BeginMutation(1, model.AnswerState{SelectedIndex: intPtr(4)})

	// The older in-flight response must not clobber the newer intent.
	if s.ResolveMutation(first, model.AnswerState{SelectedIndex: intPtr(0)}) {
		t.Error("superseded mutation response must be discarded")
	}
	if !s.ResolveMutation(second, model.AnswerState{SelectedIndex: intPtr(4)}) {
		t.Error("latest mutation response must apply")
	}

	got, _ := s.Snapshot(1)
	if got.AnswerState.SelectedIndex == nil || *got.AnswerState.SelectedIndex != 4 {
		t.Errorf("answer = %+v, want latest intent (4)", got.AnswerState)
	}

	// A stale revert is discarded the same way.
	if s.RevertMutation(first) {
		t.Error("stale revert must be discarded")
	}
}

func TestIncrementAnswered(t *testing.T) {
	s := New()
	s.SetSession(model.SessionState{SessionID: "s1", AnsweredCount: 3})
	s.IncrementAnswered()
	state, _ := s.Session()
	if state.AnsweredCount != 4 {
		t.Errorf("AnsweredCount = %d, want 4", state.AnsweredCount)
	}
}
