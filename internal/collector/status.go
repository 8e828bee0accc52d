package collector

import "sync"

// StatusHolder retains the most recent cycle result for observation. It is
// the only state shared between the scheduling loop and other goroutines.
type StatusHolder struct {
	mu     sync.RWMutex
	latest CycleResult
	seen   bool
}

// NewStatusHolder builds an empty holder.
func NewStatusHolder() *StatusHolder {
	return &StatusHolder{}
}

// Set records the latest cycle result.
func (h *StatusHolder) Set(result CycleResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = result
	h.seen = true
}

// Latest returns the most recent result and whether any cycle has completed.
func (h *StatusHolder) Latest() (CycleResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.seen
}
