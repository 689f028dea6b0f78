package playback

import "sync"

// sample is one playback position waiting to be resolved
type sample struct {
	time   float64
	source string // event that produced the sample
	force  bool   // push even if the result is unchanged
}

// mailbox holds at most one pending sample. A newer sample replaces an
// unprocessed older one so the resolver always works on the latest time.
type mailbox struct {
	mu      sync.Mutex
	pending sample
	full    bool
	ready   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

// put stores s and reports whether an unprocessed sample was replaced.
// A replaced forced sample keeps s forced.
func (m *mailbox) put(s sample) bool {
	m.mu.Lock()
	superseded := m.full
	if superseded && m.pending.force {
		s.force = true
	}
	m.pending = s
	m.full = true
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return superseded
}

// take removes the pending sample, if any
func (m *mailbox) take() (sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return sample{}, false
	}
	s := m.pending
	m.pending = sample{}
	m.full = false
	return s, true
}
