package tracking

import (
	"errors"
	"testing"

	"github.com/Group6Cameo/go-cameo/pkg/actuator"
)

func newServoForTest(cfg Config) (*ServoController, *actuator.Mock) {
	mock := actuator.NewMock()
	return NewServoController(cfg, mock), mock
}

func TestServoController_HomeCommandsRestPose(t *testing.T) {
	s, mock := newServoForTest(DefaultConfig())
	s.Home()

	cmds := mock.Commands()
	if len(cmds) != 3 {
		t.Fatalf("Home issued %d commands, want 3", len(cmds))
	}
	if deg, _ := mock.Angle(actuator.AxisTilt); deg != 90 {
		t.Errorf("tilt homed to %v, want 90", deg)
	}
	if deg, _ := mock.Angle(actuator.AxisPan); deg != 95 {
		t.Errorf("pan homed to %v, want 95", deg)
	}
	if deg, _ := mock.Angle(actuator.AxisArm); deg != 90 {
		t.Errorf("arm homed to %v, want 90", deg)
	}
}

func TestServoController_CenteredTargetIsSilent(t *testing.T) {
	cfg := DefaultConfig()
	s, mock := newServoForTest(cfg)
	cx, cy := cfg.Center()

	for i := 0; i < 5; i++ {
		s.Track(cx, cy)
	}
	if cmds := mock.Commands(); len(cmds) != 0 {
		t.Errorf("centered target produced %d commands, want 0", len(cmds))
	}
	tilt, pan, arm := s.Angles()
	if tilt != 90 || pan != 95 || arm != 90 {
		t.Errorf("angles drifted to (%v,%v,%v)", tilt, pan, arm)
	}
}

func TestServoController_DeadzoneBoundary(t *testing.T) {
	cfg := DefaultConfig() // deadzone x=60
	cx, cy := cfg.Center()

	// Exactly on the edge: still inside, no motion.
	s, mock := newServoForTest(cfg)
	s.Track(cx-60, cy)
	if cmds := mock.Commands(); len(cmds) != 0 {
		t.Errorf("edge-of-deadzone error moved %d axes, want 0", len(cmds))
	}

	// One pixel past the edge: motion.
	s, mock = newServoForTest(cfg)
	s.Track(cx-61, cy)
	if cmds := mock.Commands(); len(cmds) != 1 {
		t.Fatalf("just-outside error moved %d axes, want 1", len(cmds))
	}
}

func TestServoController_PanStepBounded(t *testing.T) {
	cfg := DefaultConfig() // step 1.5
	s, mock := newServoForTest(cfg)
	_, cy := cfg.Center()

	// Target hard left: a huge error still moves at most one step
	// per tick, stepping 96.5, 98, 99.5.
	want := []float64{96.5, 98, 99.5}
	for i, w := range want {
		s.Track(0, cy)
		_, pan, _ := s.Angles()
		if pan != w {
			t.Fatalf("tick %d: pan = %v, want %v", i+1, pan, w)
		}
	}
	for _, cmd := range mock.Commands() {
		if cmd.Axis != actuator.AxisPan {
			t.Errorf("unexpected %s command while only pan should move", cmd.Axis)
		}
	}
}

func TestServoController_ProportionalBelowStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gain = 0.01
	s, _ := newServoForTest(cfg)
	cx, cy := cfg.Center()

	// error 100px right of center, k_p 0.01: a 1 degree correction,
	// under the step cap, moving pan down.
	s.Track(cx+100, cy)
	_, pan, _ := s.Angles()
	if pan != 94 {
		t.Errorf("pan = %v, want 94 (proportional, not clamped)", pan)
	}
}

func TestServoController_TiltOpposesPixelError(t *testing.T) {
	cfg := DefaultConfig()
	s, _ := newServoForTest(cfg)
	cx, _ := cfg.Center()

	// Target at the top of the frame: positive y error, tilt down.
	s.Track(cx, 0)
	tilt, _, _ := s.Angles()
	if tilt != 88.5 {
		t.Errorf("tilt = %v, want 88.5", tilt)
	}

	// Target at the bottom: tilt back up.
	s.Track(cx, float64(cfg.FrameHeight))
	tilt, _, _ = s.Angles()
	if tilt != 90 {
		t.Errorf("tilt = %v, want 90", tilt)
	}
}

func TestServoController_TiltLowLimitCascadesToArm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TiltRest = 1 // parked against the low stop
	s, mock := newServoForTest(cfg)
	cx, _ := cfg.Center()

	// Positive y error wants tilt below 0; the arm absorbs the
	// overflow instead and tilt holds.
	s.Track(cx, 0)
	tilt, _, arm := s.Angles()
	if tilt != 1 {
		t.Errorf("tilt = %v, want pinned at 1", tilt)
	}
	if arm != 88.5 {
		t.Errorf("arm = %v, want 88.5", arm)
	}
	for _, cmd := range mock.Commands() {
		if cmd.Axis == actuator.AxisTilt {
			t.Errorf("tilt commanded to %v while pinned", cmd.Degrees)
		}
	}
}

func TestServoController_TiltHighLimitCascadesToArm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TiltRest = 180
	s, _ := newServoForTest(cfg)
	cx, _ := cfg.Center()

	// Negative y error wants tilt above 180; the arm moves up.
	s.Track(cx, float64(cfg.FrameHeight))
	tilt, _, arm := s.Angles()
	if tilt != 180 {
		t.Errorf("tilt = %v, want pinned at 180", tilt)
	}
	if arm != 91.5 {
		t.Errorf("arm = %v, want 91.5", arm)
	}
}

func TestServoController_BothLimitsPinnedIsSilent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TiltRest = 0
	cfg.ArmRest = 0
	s, mock := newServoForTest(cfg)
	cx, _ := cfg.Center()

	// Tilt and arm both against the low stop: no vertical motion is
	// possible and no command goes out.
	for i := 0; i < 3; i++ {
		s.Track(cx, 0)
	}
	if cmds := mock.Commands(); len(cmds) != 0 {
		t.Errorf("pinned axes produced %d commands, want 0", len(cmds))
	}
}

func TestServoController_DriverFailureKeepsAngle(t *testing.T) {
	cfg := DefaultConfig()
	s, mock := newServoForTest(cfg)
	_, cy := cfg.Center()

	mock.FailWith(actuator.AxisPan, errors.New("bus fault"))
	s.Track(0, cy)
	_, pan, _ := s.Angles()
	if pan != 95 {
		t.Fatalf("pan = %v after failed command, want 95 unchanged", pan)
	}

	// Once the driver recovers the next tick starts from the angle
	// that was actually reached, not the one that failed.
	mock.FailWith(actuator.AxisPan, nil)
	s.Track(0, cy)
	_, pan, _ = s.Angles()
	if pan != 96.5 {
		t.Errorf("pan = %v after recovery, want 96.5", pan)
	}
}

func TestServoController_AngleDeadzoneSuppresses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PanDeadzone = AngleRange{Min: 90, Max: 100}
	s, mock := newServoForTest(cfg)
	_, cy := cfg.Center()

	// Every candidate the controller can reach from rest lies inside
	// the suppressed band, so the axis never moves.
	for i := 0; i < 3; i++ {
		s.Track(0, cy)
	}
	if cmds := mock.Commands(); len(cmds) != 0 {
		t.Errorf("suppressed axis produced %d commands, want 0", len(cmds))
	}
	_, pan, _ := s.Angles()
	if pan != 95 {
		t.Errorf("pan = %v, want held at 95", pan)
	}
}

func TestServoController_RestRampLandsExactly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShutdownDelay = 0 // no need to pace a test
	s, mock := newServoForTest(cfg)
	cx, cy := cfg.Center()

	// Drive pan and tilt away from rest first.
	for i := 0; i < 4; i++ {
		s.Track(0, cy) // pan
		s.Track(cx, 0) // tilt
	}
	mock.Reset()

	s.Rest()
	tilt, pan, arm := s.Angles()
	if tilt != cfg.TiltRest || pan != cfg.PanRest || arm != cfg.ArmRest {
		t.Errorf("angles after Rest = (%v,%v,%v), want (%v,%v,%v)",
			tilt, pan, arm, cfg.TiltRest, cfg.PanRest, cfg.ArmRest)
	}

	perAxis := make(map[actuator.Axis]int)
	for _, cmd := range mock.Commands() {
		perAxis[cmd.Axis]++
		if cmd.Degrees < 0 || cmd.Degrees > 180 {
			t.Errorf("ramp commanded %s to %v, outside [0,180]", cmd.Axis, cmd.Degrees)
		}
	}
	for axis, n := range perAxis {
		if n > cfg.ShutdownSteps {
			t.Errorf("%s ramp used %d commands, want at most %d", axis, n, cfg.ShutdownSteps)
		}
	}
}

// TestServoController_ConvergesWithFeedback closes the loop: each pan
// command swings the camera, shifting where the subject lands in the
// frame. A subject sitting 300 px right of center is walked into the
// horizontal dead-zone and the controller then falls silent.
func TestServoController_ConvergesWithFeedback(t *testing.T) {
	cfg := DefaultConfig()
	s, mock := newServoForTest(cfg)
	cx, cy := cfg.Center()

	// 10 px of horizontal travel per degree of pan.
	const pxPerDegree = 10.0
	subjectX := func() float64 {
		_, pan, _ := s.Angles()
		return 620 + (pan-cfg.PanRest)*pxPerDegree
	}

	for i := 0; i < 5; i++ {
		s.Track(cx, cy)
	}
	if n := len(mock.Commands()); n != 0 {
		t.Fatalf("centered subject produced %d commands, want 0", n)
	}

	for i := 0; i < 40; i++ {
		s.Track(subjectX(), cy)
	}

	// error_x shrinks 300, 285, ... by 15 px per full step; the 16th
	// command leaves it exactly on the 60 px dead-zone edge.
	cmds := mock.Commands()
	if len(cmds) != 16 {
		t.Fatalf("convergence used %d commands, want 16", len(cmds))
	}
	for i, cmd := range cmds {
		if cmd.Axis != actuator.AxisPan {
			t.Errorf("command %d on %s, want pan", i, cmd.Axis)
		}
		want := cfg.PanRest - float64(i+1)*cfg.ServoStep
		if cmd.Degrees != want {
			t.Errorf("command %d = %v, want %v", i, cmd.Degrees, want)
		}
	}
	if _, pan, _ := s.Angles(); pan != 71 {
		t.Errorf("pan settled at %v, want 71", pan)
	}
	if x := subjectX(); x != 380 {
		t.Errorf("subject settled at x=%v, want 380", x)
	}
}
