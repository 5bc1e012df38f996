package booking

import "sync"

// DraftStore keeps open drafts in process memory, keyed by user id.
// Drafts do not survive a restart.
type DraftStore struct {
	mu     sync.Mutex
	drafts map[int64]Draft
}

// NewDraftStore returns an empty store.
func NewDraftStore() *DraftStore {
	return &DraftStore{drafts: make(map[int64]Draft)}
}

// Get returns the user's draft and whether one is open.
func (s *DraftStore) Get(userID int64) (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[userID]
	return d, ok
}

// Put replaces the user's draft.
func (s *DraftStore) Put(userID int64, d Draft) {
	s.mu.Lock()
	s.drafts[userID] = d
	s.mu.Unlock()
}

// Delete discards the user's draft.
func (s *DraftStore) Delete(userID int64) {
	s.mu.Lock()
	delete(s.drafts, userID)
	s.mu.Unlock()
}

// Len reports the number of open drafts.
func (s *DraftStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}
