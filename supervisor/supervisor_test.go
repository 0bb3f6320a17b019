package supervisor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hartman-ems/battery-ems/control"
	"github.com/hartman-ems/battery-ems/store"
)

// stubController is a minimal control.Controller for testing the
// supervisor's start/stop/status bookkeeping without real Modbus traffic.
type stubController struct {
	mode    control.Mode
	started chan struct{}
	stop    chan struct{}
}

func newStub(mode control.Mode) *stubController {
	return &stubController{mode: mode, started: make(chan struct{}), stop: make(chan struct{})}
}

func (c *stubController) Mode() control.Mode { return c.mode }

func (c *stubController) Run(ctx context.Context) error {
	close(c.started)
	select {
	case <-ctx.Done():
	case <-c.stop:
	}
	return nil
}

func (c *stubController) Stop() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}

func (c *stubController) Status() control.ControllerStatus {
	return control.ControllerStatus{Running: true, Mode: c.mode}
}

func newTestSupervisor(t *testing.T) (*Supervisor, *stubController) {
	t.Helper()
	s, err := store.Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("store.Load: %v", err)
	}
	var last *stubController
	factory := func(mode store.Mode, cfg store.Config) (control.Controller, error) {
		last = newStub(control.ModeIdle)
		return last, nil
	}
	sup := New(s, factory, nil)
	// Start once to populate `last`.
	if err := sup.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-last.started
	return sup, last
}

func TestStartIsIdempotent(t *testing.T) {
	sup, first := newTestSupervisor(t)
	defer sup.Stop()

	if err := sup.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !sup.Status().Running {
		t.Errorf("should still report running")
	}
	_ = first
}

func TestStopWaitsForControllerExit(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	sup.Stop()

	if sup.Status().Running {
		t.Errorf("should report not running after Stop")
	}
}

func TestSetRunningFalseStopsController(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	if err := sup.SetRunning(false); err != nil {
		t.Fatalf("SetRunning(false): %v", err)
	}
	if sup.Status().Running {
		t.Errorf("should report not running")
	}
}

func TestStatusWhenNoControllerActive(t *testing.T) {
	s, err := store.Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("store.Load: %v", err)
	}
	factory := func(mode store.Mode, cfg store.Config) (control.Controller, error) {
		return newStub(control.ModeIdle), nil
	}
	sup := New(s, factory, nil)

	st := sup.Status()
	if st.Running {
		t.Errorf("fresh supervisor should not be running")
	}
	if st.Stats != nil {
		t.Errorf("fresh supervisor should have nil stats")
	}
	_ = time.Now()
}
