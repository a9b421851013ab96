// Package actuator drives the physical pan/tilt/arm rig. The Maestro
// implementation talks the Pololu compact serial protocol; Mock records
// commands for tests and dry runs.
package actuator

import "fmt"

// Axis identifies one logical axis of the rig.
type Axis int

const (
	AxisTilt Axis = iota
	AxisPan
	AxisArm
)

func (a Axis) String() string {
	switch a {
	case AxisTilt:
		return "tilt"
	case AxisPan:
		return "pan"
	case AxisArm:
		return "arm"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}
