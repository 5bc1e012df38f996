package quiz

import "sync"

// ActiveQuestions maps an outstanding question id to its correct letter.
// It is process-wide and shared by every user.
type ActiveQuestions struct {
	mu      sync.Mutex
	answers map[int64]string
}

func NewActiveQuestions() *ActiveQuestions {
	return &ActiveQuestions{answers: make(map[int64]string)}
}

// Register records the correct letter for id, replacing any previous one.
func (a *ActiveQuestions) Register(id int64, letter string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.answers[id] = letter
}

// Lookup returns the correct letter for id.
func (a *ActiveQuestions) Lookup(id int64) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	letter, ok := a.answers[id]
	return letter, ok
}

// Close removes id.
func (a *ActiveQuestions) Close(id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.answers, id)
}

func (a *ActiveQuestions) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.answers)
}
