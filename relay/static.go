package relay

import "sync"

// StaticRelay reports fixed epoch difficulties. It backs offline tooling and
// tests where no node is available.
type StaticRelay struct {
	mtx      sync.RWMutex
	current  uint64
	previous uint64
}

// NewStaticRelay returns a relay reporting the given difficulties.
func NewStaticRelay(current, previous uint64) *StaticRelay {
	return &StaticRelay{current: current, previous: previous}
}

// SetDifficulties rolls the relay to a new pair of epochs.
func (r *StaticRelay) SetDifficulties(current, previous uint64) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.current, r.previous = current, previous
}

// CurrentEpochDifficulty returns the configured current difficulty.
func (r *StaticRelay) CurrentEpochDifficulty() (uint64, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.current, nil
}

// PrevEpochDifficulty returns the configured previous difficulty.
func (r *StaticRelay) PrevEpochDifficulty() (uint64, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.previous, nil
}
