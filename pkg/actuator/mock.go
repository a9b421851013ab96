package actuator

import "sync"

// Command is one recorded SetAngle call.
type Command struct {
	Axis    Axis
	Degrees float64
}

// Mock records commands instead of touching hardware. Tests inject
// per-axis failures; dry runs replay against it.
type Mock struct {
	mu       sync.Mutex
	commands []Command
	angles   map[Axis]float64
	fail     map[Axis]error
}

// NewMock returns an empty recording driver.
func NewMock() *Mock {
	return &Mock{
		angles: make(map[Axis]float64),
		fail:   make(map[Axis]error),
	}
}

// SetAngle records the command, unless a failure is armed for the axis.
func (m *Mock) SetAngle(axis Axis, degrees float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[axis]; err != nil {
		return err
	}
	m.commands = append(m.commands, Command{Axis: axis, Degrees: degrees})
	m.angles[axis] = degrees
	return nil
}

// FailWith makes subsequent SetAngle calls on the axis return err.
// Pass nil to clear.
func (m *Mock) FailWith(axis Axis, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, axis)
		return
	}
	m.fail[axis] = err
}

// Commands returns a copy of everything recorded so far.
func (m *Mock) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, len(m.commands))
	copy(out, m.commands)
	return out
}

// Angle returns the last commanded angle for the axis.
func (m *Mock) Angle(axis Axis) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deg, ok := m.angles[axis]
	return deg, ok
}

// Reset clears the recording but keeps armed failures.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
	m.angles = make(map[Axis]float64)
}
