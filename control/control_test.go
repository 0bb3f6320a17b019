package control

import (
	"context"
	"testing"
	"time"

	"github.com/hartman-ems/battery-ems/telemetry"
)

func testDeps() Deps {
	return Deps{
		Inverters: []InverterEndpoint{
			{Name: "inv1", Host: "test", ConnectedPhase: telemetry.L1},
		},
		DataManager: DataManagerEndpoint{Host: "test", MaxFuseCurrent: 25},
		LoopDelay:   10 * time.Millisecond,
	}
}

func TestIdleControllerStopsCleanly(t *testing.T) {
	c := NewIdleController(testDeps())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	<-ctx.Done()
	c.Stop()
	<-done

	if c.Status().Running {
		t.Errorf("controller should report not running after Stop")
	}
}

func TestManualControllerEffectiveRequest(t *testing.T) {
	cases := []struct {
		dir  ManualDirection
		amt  float64
		want float64
	}{
		{Charge, 2000, -2000},
		{Discharge, 2000, 2000},
		{Standby, 2000, 0},
	}
	for _, c := range cases {
		ctrl := NewManualController(testDeps(), c.dir, c.amt)
		if got := ctrl.effectiveRequest(); got != c.want {
			t.Errorf("%s %v: effectiveRequest() = %v, want %v", c.dir, c.amt, got, c.want)
		}
	}
}

func TestDynamicControllerRefusesToStart(t *testing.T) {
	c := NewDynamicController(testDeps())
	if err := c.Run(context.Background()); err != ErrModeNotImplemented {
		t.Errorf("Run() = %v, want ErrModeNotImplemented", err)
	}
}

func TestModeStrings(t *testing.T) {
	cases := map[Mode]string{ModeIdle: "idle", ModeManual: "manual", ModeStatic: "static", ModeDynamic: "dynamic"}
	for m, want := range cases {
		if m.String() != want {
			t.Errorf("Mode(%d).String() = %q, want %q", m, m.String(), want)
		}
	}
}
