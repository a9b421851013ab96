// Package supervise runs external helper processes next to the
// tracker, typically the perception pipeline that feeds the detection
// stream. Processes are started as a group and stopped gracefully:
// SIGTERM first, SIGKILL after a grace period.
package supervise

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/Group6Cameo/go-cameo/internal/log"
)

// ProcessConfig describes one supervised process.
type ProcessConfig struct {
	Name        string        `json:"name"`
	Args        []string      `json:"args"`
	CWD         string        `json:"cwd"`
	Env         []string      `json:"env"`
	StopTimeout time.Duration `json:"stop_timeout"` // grace before SIGKILL, default 3s
}

// Process is one managed child process. A Process is started at most
// once; Stop is safe to call any number of times.
type Process struct {
	cfg ProcessConfig
	id  string

	mu      sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	stopped bool
}

// NewProcess creates an unstarted process with a fresh run id.
func NewProcess(cfg ProcessConfig) *Process {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 3 * time.Second
	}
	return &Process{cfg: cfg, id: uuid.New().String()}
}

// ID returns the run id assigned at creation.
func (p *Process) ID() string {
	return p.id
}

// Start launches the process. The child inherits our stdout and
// stderr so its logs land next to ours.
func (p *Process) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return fmt.Errorf("process %s already started", p.cfg.Name)
	}

	cmd := exec.Command(p.cfg.Name, p.cfg.Args...)
	cmd.Dir = p.cfg.CWD
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if len(p.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), p.cfg.Env...)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.cfg.Name, err)
	}
	p.cmd = cmd
	p.done = make(chan struct{})

	log.Info("process started",
		"name", p.cfg.Name, "pid", cmd.Process.Pid, "run_id", p.id)

	go p.wait()
	return nil
}

// wait reaps the child and records how it went.
func (p *Process) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()

	switch {
	case stopped:
		log.Info("process stopped", "name", p.cfg.Name, "run_id", p.id)
	case err != nil:
		log.Warn("process exited unexpectedly",
			"name", p.cfg.Name, "run_id", p.id, "error", err)
	default:
		log.Info("process exited", "name", p.cfg.Name, "run_id", p.id)
	}
	close(p.done)
}

// Alive reports whether the process has started and not yet exited.
func (p *Process) Alive() bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Stop terminates the process: SIGTERM, then SIGKILL once the grace
// period runs out. Stopping an unstarted or already-dead process is a
// no-op.
func (p *Process) Stop() error {
	p.mu.Lock()
	if p.cmd == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	cmd, done := p.cmd, p.done
	p.mu.Unlock()

	select {
	case <-done:
		return nil
	default:
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Likely already gone; the waiter will confirm.
		log.Debug("sigterm failed", "name", p.cfg.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(p.cfg.StopTimeout):
	}

	log.Warn("process ignored sigterm, killing",
		"name", p.cfg.Name, "run_id", p.id)
	err := cmd.Process.Kill()
	<-done
	if err != nil {
		return fmt.Errorf("kill %s: %w", p.cfg.Name, err)
	}
	return nil
}

// Manager starts and stops a set of processes as a unit.
type Manager struct {
	mu    sync.Mutex
	procs []*Process
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Add registers a process and returns its handle.
func (m *Manager) Add(cfg ProcessConfig) *Process {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := NewProcess(cfg)
	m.procs = append(m.procs, p)
	return p
}

// Start launches every registered process. On the first failure the
// already-started ones are stopped again.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	procs := append([]*Process(nil), m.procs...)
	m.mu.Unlock()

	for _, p := range procs {
		if err := p.Start(ctx); err != nil {
			return multierr.Combine(err, m.Stop())
		}
	}
	return nil
}

// Stop stops every process, collecting all errors.
func (m *Manager) Stop() error {
	m.mu.Lock()
	procs := append([]*Process(nil), m.procs...)
	m.mu.Unlock()

	var err error
	for _, p := range procs {
		err = multierr.Combine(err, p.Stop())
	}
	return err
}
