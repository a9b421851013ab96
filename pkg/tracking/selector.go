package tracking

import (
	"sort"
	"strconv"
	"time"

	"github.com/Group6Cameo/go-cameo/internal/log"

	"github.com/Group6Cameo/go-cameo/pkg/tracking/feed"
)

// ManualSource provides the operator's current desired subject id.
// Implementations must be safe for concurrent use; the value is read
// at the start of a tick and must not change mid-tick.
type ManualSource interface {
	Read() (string, error)
}

// Resolved couples a detection record with the detector identity the
// conflict resolver settled on for its subject.
type Resolved struct {
	Record        feed.Record
	Authoritative string
}

// TargetSelector owns the target state: which subject the rig tracks,
// what the operator last asked for, and when subjects were last seen.
// Auto-regression reverts the target on loss and reappearance; a
// manual request always wins over every automatic rule in its tick.
type TargetSelector struct {
	manual ManualSource

	defaultID      string
	presenceWindow time.Duration
	lossTimeout    time.Duration

	active          string
	lastManual      string
	overridePending bool

	lastSeen      map[string]time.Time
	lostActiveAt  time.Time
	lostDefaultAt time.Time

	lastAccepted map[string]int64 // newest ingested sequence per subject
	lastConsumed map[string]int64 // newest actuated sequence per subject
}

// NewTargetSelector creates a selector starting on the default subject.
func NewTargetSelector(cfg Config, manual ManualSource) *TargetSelector {
	return &TargetSelector{
		manual:         manual,
		defaultID:      cfg.DefaultSubject,
		presenceWindow: cfg.PresenceWindow,
		lossTimeout:    cfg.LossTimeout,
		active:         cfg.DefaultSubject,
		lastManual:     cfg.DefaultSubject,
		lastSeen:       make(map[string]time.Time),
		lastAccepted:   make(map[string]int64),
		lastConsumed:   make(map[string]int64),
	}
}

// Accept applies the delivery-order gate: a record whose sequence does
// not advance past the last accepted one for its subject is stale and
// dropped silently. Accepted records update presence.
func (s *TargetSelector) Accept(rec feed.Record, now time.Time) bool {
	if last, ok := s.lastAccepted[rec.SubjectID]; ok && rec.Sequence <= last {
		return false
	}
	s.lastAccepted[rec.SubjectID] = rec.Sequence
	s.lastSeen[rec.SubjectID] = now
	return true
}

// CheckManual runs the manual update check. A value differing from the
// last manual request observed takes effect immediately: the active
// target switches, the loss timers reset, and auto-regression is
// suppressed for this tick. The return value reports whether that
// happened.
func (s *TargetSelector) CheckManual(now time.Time) bool {
	id, err := s.manual.Read()
	if err != nil {
		log.Warn("manual target read failed", "error", err)
		s.overridePending = false
		return false
	}
	if id == "" || id == s.lastManual {
		s.overridePending = false
		return false
	}

	s.active = id
	s.lastManual = id
	s.lostActiveAt = time.Time{}
	s.lostDefaultAt = time.Time{}
	s.overridePending = true
	log.Info("manual target update", "subject", id)
	return true
}

// AutoRegress applies the automatic target rules, in order. Later
// rules may overwrite a target set by an earlier one in the same tick.
func (s *TargetSelector) AutoRegress(now time.Time) {
	present := s.presentSet(now)

	// Rule 1: active target absent long enough reverts to the default.
	if _, ok := present[s.active]; !ok {
		if s.lostActiveAt.IsZero() {
			s.lostActiveAt = now
		} else if now.Sub(s.lostActiveAt) >= s.lossTimeout {
			if s.active != s.defaultID {
				log.Info("target lost, reverting to default",
					"lost", s.active, "default", s.defaultID)
			}
			s.active = s.defaultID
			s.lostActiveAt = time.Time{}
		}
	} else {
		s.lostActiveAt = time.Time{}
	}

	// Rule 2: tracking an absent default falls back to the smallest
	// present id once the default has been gone long enough.
	if s.active == s.defaultID && !has(present, s.defaultID) {
		if s.lostDefaultAt.IsZero() {
			s.lostDefaultAt = now
		} else if now.Sub(s.lostDefaultAt) >= s.lossTimeout {
			if id, ok := smallestNumericID(present); ok {
				log.Info("default absent, switching to smallest present id", "subject", id)
				s.active = id
			}
			s.lostDefaultAt = time.Time{}
		}
	} else {
		s.lostDefaultAt = time.Time{}
	}

	// Rule 3: the default reappearing wins the target back, but only
	// when the operator's last explicit choice was the default.
	if s.active != s.defaultID && has(present, s.defaultID) && s.lastManual == s.defaultID {
		log.Info("default reappeared, switching back", "subject", s.defaultID)
		s.active = s.defaultID
	}

	// Rule 4: a non-default manual choice reappearing wins the target
	// back from whatever automatic fallback took it.
	if s.lastManual != s.defaultID && has(present, s.lastManual) && s.active != s.lastManual {
		log.Info("manual target reappeared, switching back", "subject", s.lastManual)
		s.active = s.lastManual
	}
}

// CurrentDetection picks the position to actuate on this tick: the
// newest record for the active subject whose identity matches the
// resolver's authoritative one and whose sequence has not been
// consumed yet. Reports false when nothing qualifies, in which case
// no axis moves this tick.
func (s *TargetSelector) CurrentDetection(batch []Resolved) (x, y float64, ok bool) {
	var (
		bestSeq int64
		found   bool
	)
	for _, r := range batch {
		rec := r.Record
		if rec.SubjectID != s.active {
			continue
		}
		if rec.DetectorID != r.Authoritative {
			continue
		}
		if last, seen := s.lastConsumed[s.active]; seen && rec.Sequence <= last {
			continue
		}
		if !found || rec.Sequence > bestSeq {
			bestSeq = rec.Sequence
			x, y = rec.X, rec.Y
			found = true
		}
	}
	if !found {
		return 0, 0, false
	}
	s.lastConsumed[s.active] = bestSeq
	return x, y, true
}

// Active returns the subject currently tracked.
func (s *TargetSelector) Active() string {
	return s.active
}

// LastManual returns the operator's most recent explicit choice.
func (s *TargetSelector) LastManual() string {
	return s.lastManual
}

// ManualPending reports whether a manual update landed this tick.
func (s *TargetSelector) ManualPending() bool {
	return s.overridePending
}

// Present returns the subjects seen within the presence window, in
// stable order: numeric ids ascending, then the rest lexically.
func (s *TargetSelector) Present(now time.Time) []string {
	present := s.presentSet(now)
	ids := make([]string, 0, len(present))
	for id := range present {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, iOK := parseSubjectID(ids[i])
		nj, jOK := parseSubjectID(ids[j])
		switch {
		case iOK && jOK:
			return ni < nj
		case iOK:
			return true
		case jOK:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
	return ids
}

// Compact forgets subjects unseen for several presence windows so the
// bookkeeping maps stay bounded. Sequence gates are kept; a subject
// returning in the same session must still deliver newer sequences.
func (s *TargetSelector) Compact(now time.Time) {
	horizon := now.Add(-10 * s.presenceWindow)
	for id, seen := range s.lastSeen {
		if seen.Before(horizon) {
			delete(s.lastSeen, id)
		}
	}
}

func (s *TargetSelector) presentSet(now time.Time) map[string]time.Time {
	present := make(map[string]time.Time, len(s.lastSeen))
	for id, seen := range s.lastSeen {
		if now.Sub(seen) < s.presenceWindow {
			present[id] = seen
		}
	}
	return present
}

func has(set map[string]time.Time, id string) bool {
	_, ok := set[id]
	return ok
}

// smallestNumericID returns the numerically smallest present id.
// Ids that do not parse as integers are ignored; gallery ids are
// numeric in practice and there is no meaningful order otherwise.
func smallestNumericID(present map[string]time.Time) (string, bool) {
	var (
		best  int64
		found bool
	)
	for id := range present {
		n, ok := parseSubjectID(id)
		if !ok {
			continue
		}
		if !found || n < best {
			best = n
			found = true
		}
	}
	if !found {
		return "", false
	}
	return strconv.FormatInt(best, 10), true
}

func parseSubjectID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
