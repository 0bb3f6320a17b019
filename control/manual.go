package control

import (
	"context"

	"github.com/hartman-ems/battery-ems/codec"
	"github.com/hartman-ems/battery-ems/modbusmgr"
	"github.com/hartman-ems/battery-ems/telemetry"
)

// ManualDirection is the manual-mode charge/discharge/standby selector.
type ManualDirection string

const (
	Standby  ManualDirection = "standby"
	Charge   ManualDirection = "charge"
	Discharge ManualDirection = "discharge"
)

var stateActive = []uint16{0, 802}

// ManualController continuously commands the same requested power to every
// enabled inverter's phase, clamped per phase by the power solver.
type ManualController struct {
	base

	direction ManualDirection
	amount    float64 // watts, >= 0
}

// NewManualController builds a ManualController. amount must be >= 0; sign
// is derived from direction (standby pins the effective request to 0).
func NewManualController(deps Deps, direction ManualDirection, amount float64) *ManualController {
	return &ManualController{base: newBase(deps), direction: direction, amount: amount}
}

func (c *ManualController) Mode() Mode { return ModeManual }

func (c *ManualController) Status() ControllerStatus {
	s := c.base.Status()
	s.Mode = ModeManual
	return s
}

func (c *ManualController) effectiveRequest() float64 {
	switch c.direction {
	case Charge:
		return -abs(c.amount)
	case Discharge:
		return abs(c.amount)
	default:
		return 0
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func (c *ManualController) Run(ctx context.Context) error {
	phaseMap := phaseMapFor(c.deps.Inverters)
	phaseInvs := phaseInverters(c.deps.Inverters)
	effective := c.effectiveRequest()

	pbAppPhases := make(map[telemetry.Phase]float64, 3)
	for _, phase := range []telemetry.Phase{telemetry.L1, telemetry.L2, telemetry.L3} {
		if len(phaseInvs[phase]) > 0 {
			pbAppPhases[phase] = effective
		}
	}

	inner := func(ctx context.Context, inverters, dm *modbusmgr.Manager) error {
		return c.loop(ctx, inverters, dm, phaseMap, phaseInvs, pbAppPhases)
	}
	return c.runOuter(ctx, inner, nil)
}

func (c *ManualController) loop(ctx context.Context, inverters, dm *modbusmgr.Manager, phaseMap telemetry.PhaseMap, phaseInvs map[telemetry.Phase][]string, pbAppPhases map[telemetry.Phase]float64) error {
	for c.isRunning() {
		if err := inverters.WriteAll(ctx, 40151, stateActive, 3); err != nil {
			return err
		}

		snapshot, err := refreshSnapshot(ctx, inverters, dm, phaseMap, c.deps.DataManager.MaxFuseCurrent, dataManagerConfigured(c.deps.DataManager))
		if err != nil {
			return err
		}

		pbSent, invControl := computeInvControl(pbAppPhases, snapshot.Inverters, snapshot.DataManager)
		snapshot.InvControl = invControl
		c.setStats(snapshot)

		for phase, sent := range pbSent {
			words := codec.EncodeS32(int32(sent))
			for _, name := range phaseInvs[phase] {
				if err := inverters.WriteOne(ctx, name, 40149, words[:], 3); err != nil {
					return err
				}
			}
		}

		if err := sleepOrCancel(ctx, c.deps.LoopDelay); err != nil {
			return err
		}
	}
	return nil
}
