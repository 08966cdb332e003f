// Package state tracks per-chat processing flags, so a map link arriving
// while an extraction is still running can be deferred behind it.
package state

import "sync"

type Tracker struct {
	mu         sync.Mutex
	extracting map[int64]bool
}

func NewTracker() *Tracker {
	return &Tracker{extracting: make(map[int64]bool)}
}

func (t *Tracker) SetExtracting(chatID int64, active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if active {
		t.extracting[chatID] = true
		return
	}
	delete(t.extracting, chatID)
}

func (t *Tracker) IsExtracting(chatID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.extracting[chatID]
}
