package tracking

import (
	"testing"
	"time"
)

func newResolverForTest() *ConflictResolver {
	cfg := DefaultConfig() // 640x480 frame, center (320,240), window 1s, threshold 3
	return NewConflictResolver(cfg)
}

func TestConflictResolver_SingleIdentityPassesThrough(t *testing.T) {
	r := newResolverForTest()
	base := time.Now()

	for i := 0; i < 5; i++ {
		got := r.Resolve("7", "det-a", 600, 300, base.Add(time.Duration(i)*100*time.Millisecond))
		if got != "det-a" {
			t.Errorf("Resolve with single identity = %q, want det-a", got)
		}
	}
	if auth := r.Authoritative("7"); auth != "" {
		t.Errorf("Authoritative = %q, want none", auth)
	}
}

func TestConflictResolver_BelowThresholdNoOverride(t *testing.T) {
	r := newResolverForTest()
	base := time.Now()

	// Two identities but only two samples in the window: not enough
	// evidence to override.
	if got := r.Resolve("7", "det-a", 600, 300, base); got != "det-a" {
		t.Errorf("first Resolve = %q, want det-a", got)
	}
	if got := r.Resolve("7", "det-b", 330, 245, base.Add(100*time.Millisecond)); got != "det-b" {
		t.Errorf("second Resolve = %q, want det-b", got)
	}
	if auth := r.Authoritative("7"); auth != "" {
		t.Errorf("Authoritative = %q, want none below threshold", auth)
	}
}

func TestConflictResolver_OverridesTowardCenter(t *testing.T) {
	r := newResolverForTest()
	base := time.Now()

	// det-a sits far off-center, det-b nearly centered. Once the
	// window holds three samples across two identities, det-b wins.
	r.Resolve("7", "det-a", 600, 300, base)
	r.Resolve("7", "det-b", 330, 245, base.Add(50*time.Millisecond))
	got := r.Resolve("7", "det-a", 610, 310, base.Add(100*time.Millisecond))
	if got != "det-b" {
		t.Errorf("Resolve under conflict = %q, want det-b (closest mean to center)", got)
	}
	if auth := r.Authoritative("7"); auth != "det-b" {
		t.Errorf("Authoritative = %q, want det-b", auth)
	}

	// The override stands for later samples from the loser.
	if got := r.Resolve("7", "det-a", 620, 320, base.Add(150*time.Millisecond)); got != "det-b" {
		t.Errorf("Resolve after override = %q, want det-b", got)
	}
}

func TestConflictResolver_TieKeepsFirstInserted(t *testing.T) {
	base := time.Now()

	// Both identities average exactly 20px from center, on opposite
	// sides. The identity inserted first must win the tie.
	r := newResolverForTest()
	r.Resolve("7", "det-a", 300, 240, base)
	r.Resolve("7", "det-b", 340, 240, base.Add(10*time.Millisecond))
	if got := r.Resolve("7", "det-a", 300, 240, base.Add(20*time.Millisecond)); got != "det-a" {
		t.Errorf("tie resolved to %q, want first-inserted det-a", got)
	}

	r = newResolverForTest()
	r.Resolve("7", "det-b", 340, 240, base)
	r.Resolve("7", "det-a", 300, 240, base.Add(10*time.Millisecond))
	if got := r.Resolve("7", "det-b", 340, 240, base.Add(20*time.Millisecond)); got != "det-b" {
		t.Errorf("tie resolved to %q, want first-inserted det-b", got)
	}
}

func TestConflictResolver_WindowExpiryClearsOverride(t *testing.T) {
	r := newResolverForTest()
	base := time.Now()

	r.Resolve("7", "det-a", 600, 300, base)
	r.Resolve("7", "det-b", 330, 245, base.Add(50*time.Millisecond))
	r.Resolve("7", "det-a", 610, 310, base.Add(100*time.Millisecond))
	if auth := r.Authoritative("7"); auth != "det-b" {
		t.Fatalf("Authoritative = %q, want det-b before expiry", auth)
	}

	// Two seconds later everything has aged out; a lone fresh sample
	// dissolves the conflict and the override with it.
	got := r.Resolve("7", "det-a", 600, 300, base.Add(2*time.Second))
	if got != "det-a" {
		t.Errorf("Resolve after expiry = %q, want det-a", got)
	}
	if auth := r.Authoritative("7"); auth != "" {
		t.Errorf("Authoritative = %q, want cleared after expiry", auth)
	}
}

func TestConflictResolver_SubjectsIndependent(t *testing.T) {
	r := newResolverForTest()
	base := time.Now()

	// Conflict on subject 7 only.
	r.Resolve("7", "det-a", 600, 300, base)
	r.Resolve("7", "det-b", 330, 245, base.Add(10*time.Millisecond))
	r.Resolve("7", "det-a", 610, 310, base.Add(20*time.Millisecond))

	if got := r.Resolve("8", "det-a", 500, 200, base.Add(30*time.Millisecond)); got != "det-a" {
		t.Errorf("unconflicted subject resolved to %q, want det-a", got)
	}
	if auth := r.Authoritative("8"); auth != "" {
		t.Errorf("Authoritative(8) = %q, want none", auth)
	}
	if auth := r.Authoritative("7"); auth != "det-b" {
		t.Errorf("Authoritative(7) = %q, want det-b untouched", auth)
	}
}

func TestConflictResolver_CompactForgetsExpired(t *testing.T) {
	r := newResolverForTest()
	base := time.Now()

	r.Resolve("7", "det-a", 600, 300, base)
	r.Resolve("7", "det-b", 330, 245, base.Add(10*time.Millisecond))
	r.Resolve("7", "det-a", 610, 310, base.Add(20*time.Millisecond))

	r.Compact(base.Add(5 * time.Second))
	if auth := r.Authoritative("7"); auth != "" {
		t.Errorf("Authoritative after Compact = %q, want none", auth)
	}
}
