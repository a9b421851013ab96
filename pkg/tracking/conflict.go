package tracking

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Group6Cameo/go-cameo/internal/log"
)

// windowEntry is one observation retained for conflict detection.
type windowEntry struct {
	at   time.Time
	id   string // detector identity
	x, y float64
}

// ConflictResolver decides which detector identity is authoritative for
// a subject when several identities claim it at once. Per subject it
// keeps a time-bounded window of recent observations; a genuine
// conflict is resolved toward the identity whose mean position sits
// closest to the frame center - the subject the camera is already
// aimed at.
type ConflictResolver struct {
	window    time.Duration
	threshold int
	centerX   float64
	centerY   float64

	windows   map[string][]windowEntry
	overrides map[string]string
}

// NewConflictResolver creates a resolver using the config's window,
// threshold, and frame center.
func NewConflictResolver(cfg Config) *ConflictResolver {
	cx, cy := cfg.Center()
	return &ConflictResolver{
		window:    cfg.ConflictWindow,
		threshold: cfg.ConflictThreshold,
		centerX:   cx,
		centerY:   cy,
		windows:   make(map[string][]windowEntry),
		overrides: make(map[string]string),
	}
}

// Resolve records the observation and returns the authoritative
// detector identity for the subject. It never blocks and never fails:
// without a genuine conflict the submitted identity comes straight
// back and any standing override is cleared.
func (r *ConflictResolver) Resolve(subjectID, detectorID string, x, y float64, now time.Time) string {
	cutoff := now.Add(-r.window)
	entries := r.windows[subjectID]
	kept := entries[:0]
	for _, e := range entries {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, windowEntry{at: now, id: detectorID, x: x, y: y})
	r.windows[subjectID] = kept

	distinct := make(map[string]struct{}, 2)
	for _, e := range kept {
		distinct[e.id] = struct{}{}
	}
	if len(distinct) == 1 || len(kept) < r.threshold {
		if _, stood := r.overrides[subjectID]; stood {
			log.Debug("conflict cleared", "subject", subjectID)
			delete(r.overrides, subjectID)
		}
		return detectorID
	}

	// Genuine conflict: group by identity in insertion order and pick
	// the identity whose mean position is closest to frame center.
	// Strict improvement keeps ties with the first-inserted identity.
	var order []string
	xs := make(map[string][]float64, len(distinct))
	ys := make(map[string][]float64, len(distinct))
	for _, e := range kept {
		if _, seen := xs[e.id]; !seen {
			order = append(order, e.id)
		}
		xs[e.id] = append(xs[e.id], e.x)
		ys[e.id] = append(ys[e.id], e.y)
	}

	winner := detectorID
	best := math.Inf(1)
	for _, id := range order {
		mx := stat.Mean(xs[id], nil)
		my := stat.Mean(ys[id], nil)
		d := math.Hypot(mx-r.centerX, my-r.centerY)
		if d < best {
			best = d
			winner = id
		}
	}

	if r.overrides[subjectID] != winner {
		log.Info("conflict detected, overriding detector identity",
			"subject", subjectID, "submitted", detectorID, "authoritative", winner)
	}
	r.overrides[subjectID] = winner
	return winner
}

// Authoritative returns the standing override for the subject, or the
// empty string when none stands.
func (r *ConflictResolver) Authoritative(subjectID string) string {
	return r.overrides[subjectID]
}

// Compact drops expired window entries and forgets subjects whose
// windows have emptied. Called from the maintenance tick so vanished
// subjects do not accumulate.
func (r *ConflictResolver) Compact(now time.Time) {
	cutoff := now.Add(-r.window)
	for subject, entries := range r.windows {
		kept := entries[:0]
		for _, e := range entries {
			if e.at.After(cutoff) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(r.windows, subject)
			delete(r.overrides, subject)
			continue
		}
		r.windows[subject] = kept
	}
}
