package tracking

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// AngleRange is an inclusive angle band in degrees. A range whose Min
// exceeds its Max is disabled and never suppresses movement.
type AngleRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether angle falls inside an enabled range.
func (r AngleRange) Contains(angle float64) bool {
	if r.Disabled() {
		return false
	}
	return angle >= r.Min && angle <= r.Max
}

// Disabled reports whether the range suppresses nothing.
func (r AngleRange) Disabled() bool {
	return r.Min > r.Max
}

// DisabledRange returns the conventional always-allow band.
func DisabledRange() AngleRange {
	return AngleRange{Min: 999, Max: -1}
}

// Config holds all tunable parameters for target tracking
type Config struct {
	// Frame geometry (pixels). The frame center anchors both the
	// conflict tie-break and the control error.
	FrameWidth  int
	FrameHeight int

	// Proportional control
	Gain      float64 // correction per pixel of error (k_p)
	ServoStep float64 // max degrees any axis moves per tick

	// Pixel dead-zones: errors inside produce no correction
	DeadzoneX float64
	DeadzoneY float64

	// Per-axis angle dead-zones (degrees); Min > Max disables
	TiltDeadzone AngleRange
	PanDeadzone  AngleRange
	ArmDeadzone  AngleRange

	// Rest angles (degrees), also the startup pose
	TiltRest float64
	PanRest  float64
	ArmRest  float64

	// Conflict resolution
	ConflictWindow    time.Duration // sliding window per subject
	ConflictThreshold int           // samples needed before overriding

	// Target selection
	DefaultSubject string        // subject tracked when nothing better is known
	PresenceWindow time.Duration // seen within this window counts as present
	LossTimeout    time.Duration // continuous absence before auto-regression

	// Cadences
	ActuateInterval  time.Duration // control tick
	ManualInterval   time.Duration // manual poll + auto-regression
	MaintainInterval time.Duration // window/presence compaction

	// Shutdown ramp
	ShutdownSteps int           // return-to-rest interpolation steps
	ShutdownDelay time.Duration // pause between interpolation steps
}

// DefaultConfig returns the tuning used on the production rig
func DefaultConfig() Config {
	return Config{
		FrameWidth:  640,
		FrameHeight: 480,

		// Proportional control - responsive but bounded
		Gain:      0.5, // half a degree per pixel of error
		ServoStep: 1.5, // never more than 1.5 degrees per tick

		// Pixel dead-zones sized for eye-midpoint jitter
		DeadzoneX: 60,
		DeadzoneY: 40,

		// Angle dead-zones ship disabled; enable per rig
		TiltDeadzone: DisabledRange(),
		PanDeadzone:  DisabledRange(),
		ArmDeadzone:  DisabledRange(),

		// Rest pose matches the rig's mechanical neutral
		TiltRest: 90,
		PanRest:  95,
		ArmRest:  90,

		// Conflict resolution
		ConflictWindow:    time.Second,
		ConflictThreshold: 3,

		// Target selection
		DefaultSubject: "1",
		PresenceWindow: time.Second,
		LossTimeout:    time.Second,

		// Cadences
		ActuateInterval:  10 * time.Millisecond,
		ManualInterval:   100 * time.Millisecond,
		MaintainInterval: time.Second,

		// Shutdown ramp
		ShutdownSteps: 10,
		ShutdownDelay: 10 * time.Millisecond,
	}
}

// SlowConfig returns a configuration for gentler, steadier motion
func SlowConfig() Config {
	cfg := DefaultConfig()
	cfg.Gain = 0.3
	cfg.ServoStep = 1.0
	cfg.DeadzoneX = 80
	cfg.DeadzoneY = 60
	cfg.ActuateInterval = 20 * time.Millisecond
	return cfg
}

// AggressiveConfig returns a configuration for tight, fast tracking
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.Gain = 0.8
	cfg.ServoStep = 2.5
	cfg.DeadzoneX = 30
	cfg.DeadzoneY = 20
	return cfg
}

// Center returns the frame center in pixels.
func (c Config) Center() (x, y float64) {
	return float64(c.FrameWidth / 2), float64(c.FrameHeight / 2)
}

// Validate checks the configuration and names the first offending field.
// The daemon refuses to start on any error here.
func (c Config) Validate() error {
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", c.FrameWidth, c.FrameHeight)
	}
	if c.Gain <= 0 {
		return fmt.Errorf("k_p must be positive, got %v", c.Gain)
	}
	if c.ServoStep <= 0 {
		return fmt.Errorf("servo_step must be positive, got %v", c.ServoStep)
	}
	if c.DeadzoneX < 0 || c.DeadzoneY < 0 {
		return fmt.Errorf("pixel dead-zones must be non-negative, got (%v, %v)", c.DeadzoneX, c.DeadzoneY)
	}
	for _, rest := range []struct {
		name  string
		angle float64
	}{
		{"tilt_rest", c.TiltRest},
		{"pan_rest", c.PanRest},
		{"arm_rest", c.ArmRest},
	} {
		if rest.angle < 0 || rest.angle > 180 {
			return fmt.Errorf("%s must be within [0,180], got %v", rest.name, rest.angle)
		}
	}
	if c.ConflictWindow <= 0 {
		return fmt.Errorf("conflict_window must be positive, got %v", c.ConflictWindow)
	}
	if c.ConflictThreshold < 1 {
		return fmt.Errorf("conflict_threshold must be at least 1, got %d", c.ConflictThreshold)
	}
	if c.DefaultSubject == "" {
		return fmt.Errorf("default_subject must not be empty")
	}
	if c.PresenceWindow <= 0 {
		return fmt.Errorf("presence_window must be positive, got %v", c.PresenceWindow)
	}
	if c.LossTimeout <= 0 {
		return fmt.Errorf("loss_timeout must be positive, got %v", c.LossTimeout)
	}
	if c.ActuateInterval <= 0 || c.ManualInterval <= 0 || c.MaintainInterval <= 0 {
		return fmt.Errorf("cadence intervals must be positive, got actuate=%v manual=%v maintain=%v",
			c.ActuateInterval, c.ManualInterval, c.MaintainInterval)
	}
	if c.ShutdownSteps < 1 {
		return fmt.Errorf("shutdown_steps must be at least 1, got %d", c.ShutdownSteps)
	}
	if c.ShutdownDelay < 0 {
		return fmt.Errorf("shutdown_delay must be non-negative, got %v", c.ShutdownDelay)
	}
	return nil
}

// fileConfig is the JSON wire form of Config. All fields are optional;
// omitted ones keep their defaults, so partial configs are safe.
// Durations are strings like "250ms".
type fileConfig struct {
	FrameWidth  *int `json:"frame_width,omitempty"`
	FrameHeight *int `json:"frame_height,omitempty"`

	Gain      *float64 `json:"k_p,omitempty"`
	ServoStep *float64 `json:"servo_step,omitempty"`

	DeadzoneX *float64 `json:"deadzone_x,omitempty"`
	DeadzoneY *float64 `json:"deadzone_y,omitempty"`

	TiltDeadzone *AngleRange `json:"tilt_deadzone,omitempty"`
	PanDeadzone  *AngleRange `json:"pan_deadzone,omitempty"`
	ArmDeadzone  *AngleRange `json:"arm_deadzone,omitempty"`

	TiltRest *float64 `json:"tilt_rest,omitempty"`
	PanRest  *float64 `json:"pan_rest,omitempty"`
	ArmRest  *float64 `json:"arm_rest,omitempty"`

	ConflictWindow    *string `json:"conflict_window,omitempty"`
	ConflictThreshold *int    `json:"conflict_threshold,omitempty"`

	DefaultSubject *string `json:"default_subject,omitempty"`
	PresenceWindow *string `json:"presence_window,omitempty"`
	LossTimeout    *string `json:"loss_timeout,omitempty"`

	ActuateInterval  *string `json:"actuate_interval,omitempty"`
	ManualInterval   *string `json:"manual_interval,omitempty"`
	MaintainInterval *string `json:"maintain_interval,omitempty"`

	ShutdownSteps *int    `json:"shutdown_steps,omitempty"`
	ShutdownDelay *string `json:"shutdown_delay,omitempty"`
}

// LoadConfig reads a JSON tuning file and overlays it onto the defaults.
// The result is validated; a bad file or bad values fail loudly so the
// daemon never starts with an illegal pose.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if fc.FrameWidth != nil {
		cfg.FrameWidth = *fc.FrameWidth
	}
	if fc.FrameHeight != nil {
		cfg.FrameHeight = *fc.FrameHeight
	}
	if fc.Gain != nil {
		cfg.Gain = *fc.Gain
	}
	if fc.ServoStep != nil {
		cfg.ServoStep = *fc.ServoStep
	}
	if fc.DeadzoneX != nil {
		cfg.DeadzoneX = *fc.DeadzoneX
	}
	if fc.DeadzoneY != nil {
		cfg.DeadzoneY = *fc.DeadzoneY
	}
	if fc.TiltDeadzone != nil {
		cfg.TiltDeadzone = *fc.TiltDeadzone
	}
	if fc.PanDeadzone != nil {
		cfg.PanDeadzone = *fc.PanDeadzone
	}
	if fc.ArmDeadzone != nil {
		cfg.ArmDeadzone = *fc.ArmDeadzone
	}
	if fc.TiltRest != nil {
		cfg.TiltRest = *fc.TiltRest
	}
	if fc.PanRest != nil {
		cfg.PanRest = *fc.PanRest
	}
	if fc.ArmRest != nil {
		cfg.ArmRest = *fc.ArmRest
	}
	if fc.ConflictThreshold != nil {
		cfg.ConflictThreshold = *fc.ConflictThreshold
	}
	if fc.DefaultSubject != nil {
		cfg.DefaultSubject = *fc.DefaultSubject
	}
	if fc.ShutdownSteps != nil {
		cfg.ShutdownSteps = *fc.ShutdownSteps
	}

	durations := []struct {
		name  string
		value *string
		dst   *time.Duration
	}{
		{"conflict_window", fc.ConflictWindow, &cfg.ConflictWindow},
		{"presence_window", fc.PresenceWindow, &cfg.PresenceWindow},
		{"loss_timeout", fc.LossTimeout, &cfg.LossTimeout},
		{"actuate_interval", fc.ActuateInterval, &cfg.ActuateInterval},
		{"manual_interval", fc.ManualInterval, &cfg.ManualInterval},
		{"maintain_interval", fc.MaintainInterval, &cfg.MaintainInterval},
		{"shutdown_delay", fc.ShutdownDelay, &cfg.ShutdownDelay},
	}
	for _, d := range durations {
		if d.value == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s %q: %w", d.name, *d.value, err)
		}
		*d.dst = parsed
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
