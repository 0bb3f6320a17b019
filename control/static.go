package control

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hartman-ems/battery-ems/codec"
	"github.com/hartman-ems/battery-ems/modbusmgr"
	"github.com/hartman-ems/battery-ems/telemetry"
)

// ScheduleEntry is one static-schedule row before normalisation: amount's
// sign is derived from direction at setup, not carried by the caller.
type ScheduleEntry struct {
	TimeOfDay time.Duration // offset since local midnight
	Direction ManualDirection
	Amount    float64 // watts, >= 0 as supplied; normalised to signed internally
}

type normalizedEntry struct {
	timeOfDay time.Duration
	amount    float64 // already signed: negative=charge, positive=discharge, 0=standby
}

// StaticScheduleController walks an ordered time-of-day schedule, carrying
// the previous day's last entry over until the first entry of the new day
// is reached.
type StaticScheduleController struct {
	base

	rawSchedule []ScheduleEntry
	schedule    []normalizedEntry
	now         func() time.Time // overridable for tests
}

// NewStaticScheduleController builds a StaticScheduleController from an
// unsorted, unnormalised schedule. An empty schedule means idle.
func NewStaticScheduleController(deps Deps, schedule []ScheduleEntry) *StaticScheduleController {
	return &StaticScheduleController{base: newBase(deps), rawSchedule: schedule, now: time.Now}
}

func (c *StaticScheduleController) Mode() Mode { return ModeStatic }

func (c *StaticScheduleController) Status() ControllerStatus {
	s := c.base.Status()
	s.Mode = ModeStatic
	return s
}

// normalize validates and sorts the schedule, deriving signed amounts.
func normalize(raw []ScheduleEntry) ([]normalizedEntry, error) {
	out := make([]normalizedEntry, 0, len(raw))
	for _, e := range raw {
		var amount float64
		switch e.Direction {
		case Charge:
			amount = -abs(e.Amount)
		case Discharge:
			amount = abs(e.Amount)
		case Standby, "":
			amount = 0
		default:
			return nil, fmt.Errorf("control: unrecognized schedule direction %q", e.Direction)
		}
		out = append(out, normalizedEntry{timeOfDay: e.TimeOfDay, amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].timeOfDay < out[j].timeOfDay })
	return out, nil
}

// currentAmount derives PBapp from the normalized schedule and the current
// local time-of-day: the amount of the last entry whose time has passed
// today, or the schedule's last entry if none has passed yet (carry-over
// from the previous day).
func currentAmount(schedule []normalizedEntry, now time.Time) float64 {
	if len(schedule) == 0 {
		return 0
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	nowOffset := now.Sub(midnight)

	amount := schedule[len(schedule)-1].amount
	for _, e := range schedule {
		if nowOffset >= e.timeOfDay {
			amount = e.amount
		} else {
			break
		}
	}
	return amount
}

func (c *StaticScheduleController) Run(ctx context.Context) error {
	schedule, err := normalize(c.rawSchedule)
	if err != nil {
		return err
	}
	c.schedule = schedule

	phaseMap := phaseMapFor(c.deps.Inverters)
	phaseInvs := phaseInverters(c.deps.Inverters)

	inner := func(ctx context.Context, inverters, dm *modbusmgr.Manager) error {
		return c.loop(ctx, inverters, dm, phaseMap, phaseInvs)
	}
	release := func(inverters *modbusmgr.Manager) {
		// Best-effort relinquish-control on the way out: errors are
		// swallowed, this is a guarantee attempt, not a requirement.
		_ = inverters.WriteAll(context.Background(), 40149, rendementReset, 3)
		_ = inverters.WriteAll(context.Background(), 40151, stateInactive, 3)
	}
	return c.runOuter(ctx, inner, release)
}

func (c *StaticScheduleController) loop(ctx context.Context, inverters, dm *modbusmgr.Manager, phaseMap telemetry.PhaseMap, phaseInvs map[telemetry.Phase][]string) error {
	for c.isRunning() {
		if err := inverters.WriteAll(ctx, 40151, stateActive, 3); err != nil {
			return err
		}

		snapshot, err := refreshSnapshot(ctx, inverters, dm, phaseMap, c.deps.DataManager.MaxFuseCurrent, dataManagerConfigured(c.deps.DataManager))
		if err != nil {
			return err
		}

		amount := currentAmount(c.schedule, c.now())
		pbAppPhases := make(map[telemetry.Phase]float64, 3)
		for phase, names := range phaseInvs {
			if len(names) > 0 {
				pbAppPhases[phase] = amount
			}
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
