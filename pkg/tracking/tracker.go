package tracking

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Group6Cameo/go-cameo/internal/log"

	"github.com/Group6Cameo/go-cameo/pkg/tracking/feed"
)

// StateUpdater receives tracker status snapshots for dashboards.
type StateUpdater interface {
	UpdateStatus(Status)
}

// Status is a consistent snapshot of the tracker, taken at a tick
// boundary. No field ever reflects a half-applied tick.
type Status struct {
	ActiveTarget  string    `json:"active_target"`
	LastManual    string    `json:"last_manual_target"`
	ManualPending bool      `json:"manual_override_pending"`
	Present       []string  `json:"present_subjects"`
	TiltAngle     float64   `json:"tilt_angle"`
	PanAngle      float64   `json:"pan_angle"`
	ArmAngle      float64   `json:"arm_angle"`
	LastDetection time.Time `json:"last_detection"`
	Ticks         uint64    `json:"ticks"`
	Running       bool      `json:"running"`
}

// Tracker owns the full pipeline: it ingests detection records,
// threads them through conflict resolution and target selection, and
// actuates the servo controller. One goroutine runs the whole loop;
// every component is mutated only from that goroutine.
type Tracker struct {
	config Config

	source   feed.Source
	resolver *ConflictResolver
	selector *TargetSelector
	servos   *ServoController

	state StateUpdater
	clock clock.Clock

	// Snapshot for concurrent readers (web API, dashboards).
	mu     sync.RWMutex
	status Status

	batch         []Resolved
	ticks         uint64
	lastDetection time.Time
}

// New creates a tracker wired to a detection source, a manual target
// source, and an actuator driver.
func New(cfg Config, source feed.Source, manual ManualSource, driver Driver) *Tracker {
	return &Tracker{
		config:   cfg,
		source:   source,
		resolver: NewConflictResolver(cfg),
		selector: NewTargetSelector(cfg, manual),
		servos:   NewServoController(cfg, driver),
		clock:    clock.New(),
	}
}

// SetStateUpdater sets the dashboard state receiver.
func (t *Tracker) SetStateUpdater(state StateUpdater) {
	t.state = state
}

// SetClock replaces the wall clock, for tests.
func (t *Tracker) SetClock(c clock.Clock) {
	t.clock = c
}

// Status returns the latest snapshot.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st := t.status
	st.Present = slices.Clone(st.Present)
	return st
}

// Run drives the control loop until the context is cancelled, then
// returns the rig to its rest pose. Three cadences share one
// goroutine: actuation, manual polling with auto-regression, and
// window maintenance.
func (t *Tracker) Run(ctx context.Context) error {
	if err := t.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	actuate := t.clock.Ticker(t.config.ActuateInterval)
	manual := t.clock.Ticker(t.config.ManualInterval)
	maintain := t.clock.Ticker(t.config.MaintainInterval)
	defer actuate.Stop()
	defer manual.Stop()
	defer maintain.Stop()

	t.servos.Home()
	t.publish(true)

	go t.pumpSource(ctx)
	records := t.source.Records()

	log.Info("tracker started",
		"actuate", t.config.ActuateInterval,
		"manual", t.config.ManualInterval,
		"default_subject", t.config.DefaultSubject,
		"k_p", t.config.Gain,
		"servo_step", t.config.ServoStep)

	for {
		select {
		case <-ctx.Done():
			log.Info("tracker stopping", "ticks", t.ticks)
			t.servos.Rest()
			t.publish(false)
			return nil

		case rec := <-records:
			t.ingest(rec)

		case <-manual.C:
			now := t.clock.Now()
			if !t.selector.CheckManual(now) {
				t.selector.AutoRegress(now)
			}
			t.publish(true)

		case <-actuate.C:
			t.actuateTick()

		case <-maintain.C:
			now := t.clock.Now()
			t.resolver.Compact(now)
			t.selector.Compact(now)
			t.publish(true)
		}
	}
}

// ingest runs one record through the delivery gate and the conflict
// resolver, then parks it for the next actuation tick. Stale records
// die here silently.
func (t *Tracker) ingest(rec feed.Record) {
	now := t.clock.Now()
	if !t.selector.Accept(rec, now) {
		return
	}
	auth := t.resolver.Resolve(rec.SubjectID, rec.DetectorID, rec.X, rec.Y, now)
	t.batch = append(t.batch, Resolved{Record: rec, Authoritative: auth})
}

// actuateTick consumes the batch accumulated since the previous tick.
// Either every axis update for the tick completes or none start.
func (t *Tracker) actuateTick() {
	t.ticks++
	x, y, ok := t.selector.CurrentDetection(t.batch)
	t.batch = t.batch[:0]
	if ok {
		t.lastDetection = t.clock.Now()
		t.servos.Track(x, y)
	}
	t.publish(true)
}

// pumpSource keeps the detection source running, reconnecting with a
// fixed backoff. Feed failures never escalate past a warning.
func (t *Tracker) pumpSource(ctx context.Context) {
	for {
		if err := t.source.Run(ctx); err != nil {
			log.Warn("detection source stopped", "error", err)
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-t.clock.After(time.Second):
		}
	}
}

// publish refreshes the shared snapshot and notifies the dashboard
// when something an operator can see has changed.
func (t *Tracker) publish(running bool) {
	now := t.clock.Now()
	tilt, pan, arm := t.servos.Angles()
	st := Status{
		ActiveTarget:  t.selector.Active(),
		LastManual:    t.selector.LastManual(),
		ManualPending: t.selector.ManualPending(),
		Present:       t.selector.Present(now),
		TiltAngle:     tilt,
		PanAngle:      pan,
		ArmAngle:      arm,
		LastDetection: t.lastDetection,
		Ticks:         t.ticks,
		Running:       running,
	}

	t.mu.Lock()
	changed := !statusEqual(t.status, st)
	t.status = st
	t.mu.Unlock()

	if changed && t.state != nil {
		t.state.UpdateStatus(st)
	}
}

// statusEqual ignores the tick counter and detection timestamp; those
// advance constantly and would turn every tick into a broadcast.
func statusEqual(a, b Status) bool {
	return a.ActiveTarget == b.ActiveTarget &&
		a.LastManual == b.LastManual &&
		a.ManualPending == b.ManualPending &&
		a.TiltAngle == b.TiltAngle &&
		a.PanAngle == b.PanAngle &&
		a.ArmAngle == b.ArmAngle &&
		a.Running == b.Running &&
		slices.Equal(a.Present, b.Present)
}
