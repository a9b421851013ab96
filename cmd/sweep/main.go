// Servo sweep - exercises each rig axis through a range of angles and
// reports controller faults. Run after rewiring the rig or whenever a
// servo sounds unhappy.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/Group6Cameo/go-cameo/internal/config"
	"github.com/Group6Cameo/go-cameo/internal/log"

	"github.com/Group6Cameo/go-cameo/pkg/actuator"
	"github.com/Group6Cameo/go-cameo/pkg/tracking"
)

func main() {
	serialPath := flag.String("serial", config.Getenv("CAMEO_SERIAL", "/dev/ttyACM0"), "Maestro serial device")
	axisName := flag.String("axis", "all", "Axis to sweep: tilt, pan, arm, or all")
	minDeg := flag.Float64("min", config.GetenvFloat("CAMEO_SWEEP_MIN", 20), "Sweep lower bound in degrees")
	maxDeg := flag.Float64("max", config.GetenvFloat("CAMEO_SWEEP_MAX", 160), "Sweep upper bound in degrees")
	delay := flag.Duration("delay", config.GetenvDuration("CAMEO_SWEEP_DELAY", 25*time.Millisecond), "Pause between steps")
	mock := flag.Bool("mock", false, "Record commands instead of driving hardware")
	flag.Parse()
	log.Init("info")

	if *minDeg < 0 || *maxDeg > 180 || *minDeg >= *maxDeg {
		log.Fatal("sweep range must satisfy 0 <= min < max <= 180", "min", *minDeg, "max", *maxDeg)
	}

	axes, err := resolveAxes(*axisName)
	if err != nil {
		log.Fatal("bad axis", "error", err)
	}

	fmt.Println("🔧 Cameo Servo Sweep")
	fmt.Printf("   Range: %.0f° to %.0f°, %s per step\n\n", *minDeg, *maxDeg, *delay)

	var driver tracking.Driver
	var maestro *actuator.Maestro
	if *mock {
		driver = actuator.NewMock()
	} else {
		maestro, err = actuator.OpenMaestro(*serialPath)
		if err != nil {
			log.Fatal("servo controller", "error", err)
		}
		defer maestro.Close()
		driver = maestro
	}

	rig := tracking.DefaultConfig()
	for _, axis := range axes {
		fmt.Printf("▶ %s\n", axis)
		if err := sweep(driver, axis, *minDeg, *maxDeg, restFor(rig, axis), *delay); err != nil {
			log.Fatal("sweep aborted", "axis", axis.String(), "error", err)
		}
		if maestro != nil {
			if err := maestro.Errors(); err != nil {
				fmt.Printf("  ⚠️  %v\n", err)
			} else {
				fmt.Println("  ✅ no controller faults")
			}
		}
	}

	if mk, ok := driver.(*actuator.Mock); ok {
		fmt.Printf("\n🔌 Dry run: %d commands recorded\n", len(mk.Commands()))
	}
	fmt.Println("👋 Done")
}

// sweep walks one axis from its rest pose down to min, up to max, and
// back to rest, one degree at a time.
func sweep(driver tracking.Driver, axis actuator.Axis, min, max, rest float64, delay time.Duration) error {
	move := func(from, to float64) error {
		step := 1.0
		if to < from {
			step = -1
		}
		for deg := from; (step > 0 && deg <= to) || (step < 0 && deg >= to); deg += step {
			if err := driver.SetAngle(axis, deg); err != nil {
				return err
			}
			time.Sleep(delay)
		}
		return nil
	}
	if err := move(rest, min); err != nil {
		return err
	}
	if err := move(min, max); err != nil {
		return err
	}
	return move(max, rest)
}

func restFor(cfg tracking.Config, axis actuator.Axis) float64 {
	switch axis {
	case actuator.AxisTilt:
		return cfg.TiltRest
	case actuator.AxisPan:
		return cfg.PanRest
	default:
		return cfg.ArmRest
	}
}

func resolveAxes(name string) ([]actuator.Axis, error) {
	switch name {
	case "tilt":
		return []actuator.Axis{actuator.AxisTilt}, nil
	case "pan":
		return []actuator.Axis{actuator.AxisPan}, nil
	case "arm":
		return []actuator.Axis{actuator.AxisArm}, nil
	case "all":
		return []actuator.Axis{actuator.AxisTilt, actuator.AxisPan, actuator.AxisArm}, nil
	default:
		return nil, fmt.Errorf("unknown axis %q (want tilt, pan, arm, or all)", name)
	}
}
