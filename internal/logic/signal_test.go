package logic

import (
	"testing"
	"time"
)

const window = 50 * time.Millisecond

func TestSeedProducesNoEdge(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSignal(window)

	// First sample seeds; a high boot-time level must not register as
	// a rising edge.
	if edge := s.Update(true, now); edge != EdgeNone {
		t.Errorf("expected no edge on first sample, got %v", edge)
	}
	if !s.Stable() {
		t.Error("stable state should match the seeded level")
	}
	if !s.Seeded() {
		t.Error("signal should report seeded")
	}
}

func TestStableChangeAfterWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSignal(window)
	s.Seed(false, now)

	// Raw change observed; stable unchanged until the window elapses.
	if edge := s.Update(true, now.Add(10*time.Millisecond)); edge != EdgeNone {
		t.Errorf("expected no edge at change, got %v", edge)
	}
	if edge := s.Update(true, now.Add(50*time.Millisecond)); edge != EdgeNone {
		t.Errorf("expected no edge at 40ms settle, got %v", edge)
	}

	// 50ms after the raw change the state is trusted.
	edge := s.Update(true, now.Add(60*time.Millisecond))
	if edge != EdgeRising {
		t.Fatalf("expected rising edge, got %v", edge)
	}
	if !s.Stable() {
		t.Error("stable state should be high after the edge")
	}

	// No repeated edge for the same stable state.
	if edge := s.Update(true, now.Add(200*time.Millisecond)); edge != EdgeNone {
		t.Errorf("expected no edge for held state, got %v", edge)
	}
}

func TestFallingEdge(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSignal(window)
	s.Seed(true, now)

	s.Update(false, now.Add(10*time.Millisecond))
	edge := s.Update(false, now.Add(60*time.Millisecond))
	if edge != EdgeFalling {
		t.Errorf("expected falling edge, got %v", edge)
	}
	if s.Stable() {
		t.Error("stable state should be low")
	}
}

func TestBounceShorterThanWindowIgnored(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSignal(window)
	s.Seed(false, now)

	// Chatter spaced tighter than the window: every flip restarts the
	// settle timer, so the stable state never moves.
	for i := 1; i <= 8; i++ {
		raw := i%2 == 1
		if edge := s.Update(raw, now.Add(time.Duration(i)*20*time.Millisecond)); edge != EdgeNone {
			t.Fatalf("sample %d: unexpected edge %v", i, edge)
		}
	}
	if s.Stable() {
		t.Error("stable state moved during chatter")
	}

	// Settle high for a full window: exactly one edge.
	settle := now.Add(200 * time.Millisecond)
	s.Update(true, settle)
	edges := 0
	for i := 1; i <= 10; i++ {
		if e := s.Update(true, settle.Add(time.Duration(i)*10*time.Millisecond)); e != EdgeNone {
			edges++
		}
	}
	if edges != 1 {
		t.Errorf("expected exactly 1 edge per settle period, got %d", edges)
	}
}

func TestUnseededUpdateSeeds(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSignal(window)

	s.Update(true, now)
	if !s.Seeded() || !s.Stable() {
		t.Error("first Update should seed raw and stable state")
	}
}

func TestExactWindowTiming(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSignal(window)
	s.Seed(false, now)

	s.Update(true, now.Add(100*time.Millisecond))

	// 49ms after the change: not yet.
	if edge := s.Update(true, now.Add(149*time.Millisecond)); edge != EdgeNone {
		t.Error("edge before the window elapsed")
	}
	// Exactly 50ms after the change: trusted.
	if edge := s.Update(true, now.Add(150*time.Millisecond)); edge != EdgeRising {
		t.Error("expected edge exactly at the window boundary")
	}
}
