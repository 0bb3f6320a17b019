package control

import (
	"context"

	"github.com/hartman-ems/battery-ems/modbusmgr"
	"github.com/hartman-ems/battery-ems/telemetry"
)

// rendementReset and stateInactive are the two-word payloads written to
// 40149 (power setpoint) and 40151 (control-mode code) to relinquish
// control of an inverter.
var rendementReset = []uint16{0, 0}
var stateInactive = []uint16{0, 803}

// IdleController connects to every configured device and repeatedly resets
// each inverter's power setpoint and control-mode code to inactive, then
// refreshes the telemetry snapshot. It never commands a setpoint.
type IdleController struct {
	base
}

// NewIdleController builds an IdleController from the shared dependencies.
func NewIdleController(deps Deps) *IdleController {
	return &IdleController{base: newBase(deps)}
}

func (c *IdleController) Mode() Mode { return ModeIdle }

func (c *IdleController) Status() ControllerStatus {
	s := c.base.Status()
	s.Mode = ModeIdle
	return s
}

func (c *IdleController) Run(ctx context.Context) error {
	phaseMap := phaseMapFor(c.deps.Inverters)
	inner := func(ctx context.Context, inverters, dm *modbusmgr.Manager) error {
		return c.loop(ctx, inverters, dm, phaseMap)
	}
	return c.runOuter(ctx, inner, nil)
}

func (c *IdleController) loop(ctx context.Context, inverters, dm *modbusmgr.Manager, phaseMap telemetry.PhaseMap) error {
	for c.isRunning() {
		if err := inverters.WriteAll(ctx, 40149, rendementReset, 3); err != nil {
			return err
		}
		if err := inverters.WriteAll(ctx, 40151, stateInactive, 3); err != nil {
			return err
		}

		snapshot, err := refreshSnapshot(ctx, inverters, dm, phaseMap, c.deps.DataManager.MaxFuseCurrent, dataManagerConfigured(c.deps.DataManager))
		if err != nil {
			return err
		}
		c.setStats(snapshot)

		if err := sleepOrCancel(ctx, c.deps.LoopDelay); err != nil {
			return err
		}
	}
	return nil
}
