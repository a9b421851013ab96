package actuator

import (
	"fmt"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/Group6Cameo/go-cameo/internal/log"
)

// Pololu Maestro compact protocol command bytes.
// See https://www.pololu.com/docs/pdf/0J40/maestro.pdf
const (
	cmdSetTarget = 0x84
	cmdGetErrors = 0xa1
)

// Servo pulse range in microseconds, mapped linearly over 0..180
// degrees. The Maestro wants targets in quarter-microsecond units.
const (
	minPulseUS = 400
	maxPulseUS = 2600
)

// Maestro channel assignments. The arm is a two-servo parallel
// linkage: channel 3 takes the commanded angle and channel 2 its
// mirror, so both halves move together.
const (
	chTilt      = 0
	chPan       = 1
	chArmMirror = 2
	chArm       = 3
)

// Maestro drives servos over a Pololu Maestro board on a serial port.
// Safe for concurrent use.
type Maestro struct {
	mu   sync.Mutex
	port serial.Port
}

// OpenMaestro opens the Maestro on the given serial device path.
func OpenMaestro(path string) (*Maestro, error) {
	mode := &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open maestro %s: %w", path, err)
	}
	log.Info("maestro connected", "path", path, "baud", mode.BaudRate)
	return NewMaestro(port), nil
}

// NewMaestro wraps an already-open serial port.
func NewMaestro(port serial.Port) *Maestro {
	return &Maestro{port: port}
}

// SetAngle moves one axis to the given angle in degrees.
func (m *Maestro) SetAngle(axis Axis, degrees float64) error {
	if degrees < 0 || degrees > 180 {
		return fmt.Errorf("set %s: angle %.2f out of range [0, 180]", axis, degrees)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch axis {
	case AxisTilt:
		return m.setTarget(chTilt, degrees)
	case AxisPan:
		return m.setTarget(chPan, degrees)
	case AxisArm:
		// Both linkage servos must move or neither; a half-moved
		// arm binds the mechanism.
		if err := m.setTarget(chArm, degrees); err != nil {
			return err
		}
		return m.setTarget(chArmMirror, 180-degrees)
	}
	return fmt.Errorf("set angle: unknown axis %d", int(axis))
}

// setTarget issues a compact set-target command for one channel.
// Callers hold m.mu.
func (m *Maestro) setTarget(channel uint8, degrees float64) error {
	pulse := minPulseUS + degrees/180*(maxPulseUS-minPulseUS)
	target := uint16(pulse * 4) // quarter-microseconds

	cmd := []byte{cmdSetTarget, channel, byte(target & 0x7f), byte((target >> 7) & 0x7f)}
	if _, err := m.port.Write(cmd); err != nil {
		return fmt.Errorf("set target channel %d: %w", channel, err)
	}
	return nil
}

// Errors polls the board's error register and decodes the bitmap.
// Reading clears the register on the device.
func (m *Maestro) Errors() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.port.Write([]byte{cmdGetErrors}); err != nil {
		return fmt.Errorf("get errors: %w", err)
	}
	buf := make([]byte, 2)
	if _, err := m.port.Read(buf); err != nil {
		return fmt.Errorf("get errors: %w", err)
	}
	return decodeErrors(uint16(buf[0])&0x7f | (uint16(buf[1])&0x7f)<<8)
}

// Close releases the serial port.
func (m *Maestro) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port.Close()
}

var maestroErrorBits = []string{
	"serial signal error",          // bit 0
	"serial overrun error",         // bit 1
	"serial buffer full",           // bit 2
	"serial crc error",             // bit 3
	"serial protocol error",        // bit 4
	"serial timeout",               // bit 5
	"script stack error",           // bit 6
	"script call stack error",      // bit 7
	"script program counter error", // bit 8
}

func decodeErrors(val uint16) error {
	var s []string
	for i, msg := range maestroErrorBits {
		if val&(1<<i) != 0 {
			s = append(s, msg)
		}
	}
	if len(s) == 0 {
		return nil
	}
	return fmt.Errorf("maestro: %s", strings.Join(s, ", "))
}
