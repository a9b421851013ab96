package tracking

import (
	"math"
	"time"

	"github.com/Group6Cameo/go-cameo/internal/log"

	"github.com/Group6Cameo/go-cameo/pkg/actuator"
)

// Driver commands one physical axis to an absolute angle in degrees.
// Implementations must accept any value in [0,180] and return quickly;
// a failed call is reported, never retried.
type Driver interface {
	SetAngle(axis actuator.Axis, degrees float64) error
}

// axisState is the commanded angle and suppression band for one axis.
type axisState struct {
	axis     actuator.Axis
	angle    float64
	deadzone AngleRange
}

// ServoController converts the tracked subject's pixel error into one
// tick of motion across three axes. Horizontal error drives the pan
// axis. Vertical error drives the primary tilt axis; when tilt cannot
// move further toward a limit, the overflow cascades onto the arm
// axis, which extends the same logical degree of freedom with a wider
// slower throw.
type ServoController struct {
	driver Driver

	gain    float64
	step    float64
	deadX   float64
	deadY   float64
	centerX float64
	centerY float64

	steps int
	delay time.Duration

	tilt axisState
	pan  axisState
	arm  axisState

	tiltRest float64
	panRest  float64
	armRest  float64
}

// NewServoController creates a controller with every axis at its rest
// angle. Nothing is commanded until Home or Track runs.
func NewServoController(cfg Config, driver Driver) *ServoController {
	cx, cy := cfg.Center()
	return &ServoController{
		driver:   driver,
		gain:     cfg.Gain,
		step:     cfg.ServoStep,
		deadX:    cfg.DeadzoneX,
		deadY:    cfg.DeadzoneY,
		centerX:  cx,
		centerY:  cy,
		steps:    cfg.ShutdownSteps,
		delay:    cfg.ShutdownDelay,
		tilt:     axisState{axis: actuator.AxisTilt, angle: cfg.TiltRest, deadzone: cfg.TiltDeadzone},
		pan:      axisState{axis: actuator.AxisPan, angle: cfg.PanRest, deadzone: cfg.PanDeadzone},
		arm:      axisState{axis: actuator.AxisArm, angle: cfg.ArmRest, deadzone: cfg.ArmDeadzone},
		tiltRest: cfg.TiltRest,
		panRest:  cfg.PanRest,
		armRest:  cfg.ArmRest,
	}
}

// Home commands every axis to its current in-memory angle, which at
// startup is the rest pose. Failures are warnings; the rig holds its
// previous physical pose and tracking corrects from there.
func (s *ServoController) Home() {
	for _, st := range []*axisState{&s.tilt, &s.pan, &s.arm} {
		if err := s.driver.SetAngle(st.axis, st.angle); err != nil {
			log.Warn("homing failed", "axis", st.axis, "angle", st.angle, "error", err)
		}
	}
}

// Track runs one control tick toward the target position. Errors
// inside the pixel dead-zones produce no motion at all; otherwise each
// axis moves at most one step, clamped into [0,180].
func (s *ServoController) Track(x, y float64) {
	errX := s.centerX - x
	errY := s.centerY - y

	var deltaX float64
	if math.Abs(errX) > s.deadX {
		deltaX = clamp(s.gain*errX, -s.step, s.step)
	}
	var deltaY float64
	if math.Abs(errY) > s.deadY {
		deltaY = clamp(s.gain*errY, -s.step, s.step)
	}

	if deltaX != 0 {
		s.apply(&s.pan, clamp(s.pan.angle+deltaX, 0, 180))
	}

	if deltaY != 0 {
		// Pixel y grows downward while the tilt angle grows upward,
		// so the correction is subtracted.
		candidate := clamp(s.tilt.angle-deltaY, 0, 180)
		lowSat := deltaY > 0 && candidate <= 0
		highSat := deltaY < 0 && candidate >= 180
		switch {
		case !lowSat && !highSat:
			s.apply(&s.tilt, candidate)
		default:
			// Tilt is pinned against a limit; the arm takes over.
			// If the arm is pinned too there is no further vertical
			// motion this tick.
			armDelta := -s.step
			if highSat {
				armDelta = s.step
			}
			s.apply(&s.arm, clamp(s.arm.angle+armDelta, 0, 180))
		}
	}
}

// apply commands one axis to a candidate angle. A candidate inside the
// axis dead-zone is suppressed and the axis keeps its current value.
// On a driver failure the in-memory angle is left unchanged so the
// controller never assumes motion that did not happen.
func (s *ServoController) apply(st *axisState, candidate float64) {
	if st.deadzone.Contains(candidate) {
		return
	}
	if candidate == st.angle {
		return
	}
	if err := s.driver.SetAngle(st.axis, candidate); err != nil {
		log.Warn("axis command failed", "axis", st.axis, "angle", candidate, "error", err)
		return
	}
	st.angle = candidate
}

// Rest smoothly returns every axis to its rest angle, interpolating
// over the configured number of steps with a fixed pause between
// steps. The divisor shrinks each iteration so the final step lands
// exactly on the rest pose. Runs to completion; it is the shutdown
// path and must not be cut short by the cancellation that caused it.
func (s *ServoController) Rest() {
	log.Info("returning to rest pose",
		"tilt", s.tiltRest, "pan", s.panRest, "arm", s.armRest)
	for i := 0; i < s.steps; i++ {
		remaining := float64(s.steps - i)
		s.apply(&s.tilt, s.tilt.angle+(s.tiltRest-s.tilt.angle)/remaining)
		s.apply(&s.pan, s.pan.angle+(s.panRest-s.pan.angle)/remaining)
		s.apply(&s.arm, s.arm.angle+(s.armRest-s.arm.angle)/remaining)
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
	}
}

// Angles returns the current commanded angles.
func (s *ServoController) Angles() (tilt, pan, arm float64) {
	return s.tilt.angle, s.pan.angle, s.arm.angle
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
