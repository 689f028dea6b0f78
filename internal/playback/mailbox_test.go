package playback

import "testing"

func TestMailbox_LatestWins(t *testing.T) {
	m := newMailbox()

	if m.put(sample{time: 1}) {
		t.Error("Expected first put to supersede nothing")
	}
	if !m.put(sample{time: 2}) {
		t.Error("Expected second put to supersede the first")
	}

	s, ok := m.take()
	if !ok || s.time != 2 {
		t.Errorf("Expected latest sample 2, got %v (ok=%v)", s.time, ok)
	}
	if _, ok := m.take(); ok {
		t.Error("Expected mailbox to be empty after take")
	}
}

func TestMailbox_KeepsForce(t *testing.T) {
	m := newMailbox()

	m.put(sample{time: 1, source: EventSeek, force: true})
	m.put(sample{time: 2, source: EventTime})

	s, _ := m.take()
	if !s.force {
		t.Error("Expected a superseded forced sample to keep the replacement forced")
	}
	if s.time != 2 {
		t.Errorf("Expected time 2, got %v", s.time)
	}
}

func TestMailbox_ReadySignal(t *testing.T) {
	m := newMailbox()
	m.put(sample{time: 1})
	m.put(sample{time: 2})

	select {
	case <-m.ready:
	default:
		t.Fatal("Expected ready signal")
	}

	// One signal covers both puts
	select {
	case <-m.ready:
		t.Error("Expected a single pending signal")
	default:
	}
}
