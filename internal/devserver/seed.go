package devserver

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-player/internal/model"
)

// sample stems cycled through when seeding a dev session.
var seedStems = []string{
	"Manakah pernyataan berikut yang paling tepat?",
	"Berapakah hasil dari operasi berikut?",
	"Pilihlah jawaban yang sesuai dengan teks di atas.",
	"Manakah urutan langkah yang benar?",
	"Apa kesimpulan yang dapat ditarik dari data berikut?",
}

// newSessionState builds the initial state for a seeded dev session.
func newSessionState(req model.CreateSessionRequest) model.SessionState {
	return model.SessionState{
		SessionID:        uuid.New().String(),
		Mode:             req.Mode,
		Status:           model.SessionStatusActive,
		CurrentIndex:     1,
		TotalQuestions:   req.QuestionCount,
		AnsweredCount:    0,
		TimeLimitSeconds: req.TimeLimitSeconds,
		StartedAt:        time.Now().UTC(),
	}
}

// seedQuestions generates n placeholder questions with the fixed option count.
func seedQuestions(n int) []model.QuestionSnapshot {
	questions := make([]model.QuestionSnapshot, n)
	for i := range questions {
		index := i + 1
		options := make([]string, model.OptionCount)
		for j := range options {
			options[j] = fmt.Sprintf("Pilihan %c untuk soal %d", 'A'+j, index)
		}
		questions[i] = model.QuestionSnapshot{
			Index:      index,
			QuestionID: uuid.New().String(),
			Text:       fmt.Sprintf("Soal %d. %s", index, seedStems[i%len(seedStems)]),
			Options:    options,
		}
	}
	return questions
}

// expire flips an ACTIVE exam session past its deadline to EXPIRED.
// Returns true if the state was changed.
func expire(state *model.SessionState) bool {
	if state.Status != model.SessionStatusActive {
		return false
	}
	deadline, ok := state.Deadline()
	if !ok || time.Now().Before(deadline) {
		return false
	}
	state.Status = model.SessionStatusExpired
	return true
}
