// Package supervisor holds at most one active Controller, starting and
// stopping it in response to HTTP requests, config mode changes, or process
// signals.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hartman-ems/battery-ems/control"
	"github.com/hartman-ems/battery-ems/store"
)

// Factory builds the Controller matching a store.Mode from the current
// config document. Supervisor is decoupled from control's concrete
// constructors so it can be unit-tested with a stub factory.
type Factory func(mode store.Mode, cfg store.Config) (control.Controller, error)

// Status is what GET /api/ reports.
type Status struct {
	Status       string
	Running      bool
	RunningStart time.Time
	Mode         store.Mode
	Stats        *control.Stats
}

// Supervisor owns the single active Controller and the goroutine running
// it.
type Supervisor struct {
	cfg     *store.Store
	factory Factory
	logger  *log.Logger

	mu         sync.Mutex
	controller control.Controller
	mode       store.Mode
	cancel     context.CancelFunc
	done       chan struct{}
	running    bool
}

// New builds a Supervisor. It does not start anything until Start is
// called.
func New(cfg *store.Store, factory Factory, logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.Default()
	}
	return &Supervisor{cfg: cfg, factory: factory, logger: logger}
}

// Start constructs the controller matching the config's current mode (if
// none is active) and runs it as a background task. Start is a no-op if a
// controller is already active.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controller != nil {
		return nil
	}

	cfg := s.cfg.Snapshot()
	mode := cfg.General.Mode
	ctrl, err := s.factory(mode, cfg)
	if err != nil {
		return fmt.Errorf("supervisor: building controller for mode %s: %w", mode, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.controller = ctrl
	s.mode = mode
	s.cancel = cancel
	s.running = true
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := ctrl.Run(ctx); err != nil {
			s.logger.Printf("supervisor: controller for mode %s exited: %v", mode, err)
		}
	}()

	return nil
}

// Stop tells the active controller to stop and waits for its goroutine to
// exit. Stop is a no-op if nothing is running.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	ctrl := s.controller
	cancel := s.cancel
	done := s.done
	s.running = false
	s.mu.Unlock()

	if ctrl == nil {
		return
	}
	ctrl.Stop()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	s.mu.Lock()
	s.controller = nil
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
}

// SetRunning implements POST /api/run's {running: bool} semantics: true
// starts (if idle), false stops (if running).
func (s *Supervisor) SetRunning(running bool) error {
	if running {
		return s.Start()
	}
	s.Stop()
	return nil
}

// ModeChanged treats a config mode change as stop-then-start with the new
// mode, per §4.6.
func (s *Supervisor) ModeChanged() error {
	s.mu.Lock()
	wasRunning := s.controller != nil
	s.mu.Unlock()

	if !wasRunning {
		return nil
	}
	s.Stop()
	return s.Start()
}

// Status reports the aggregate supervisor/controller state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	ctrl := s.controller
	running := s.running
	mode := s.mode
	s.mu.Unlock()

	if ctrl == nil {
		return Status{Status: "ok", Running: false, Mode: mode}
	}

	cs := ctrl.Status()
	return Status{
		Status:       "ok",
		Running:      running,
		RunningStart: cs.RunningStart,
		Mode:         mode,
		Stats:        cs.Stats,
	}
}
