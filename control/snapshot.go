package control

import (
	"context"
	"time"

	"github.com/hartman-ems/battery-ems/modbusmgr"
	"github.com/hartman-ems/battery-ems/powersolver"
	"github.com/hartman-ems/battery-ems/telemetry"
)

func dataManagerConfigured(dm DataManagerEndpoint) bool {
	return dm.Host != ""
}

// refreshSnapshot re-reads battery/AC-side and (if configured) grid-meter
// telemetry into a fresh Stats value. A controller overwrites its stats slot
// with the result in place, per loop iteration.
func refreshSnapshot(ctx context.Context, inverters, dm *modbusmgr.Manager, phaseMap telemetry.PhaseMap, maxFuseCurrent float64, dmConfigured bool) (*Stats, error) {
	invReadings, err := telemetry.BatteryStats(ctx, inverters, phaseMap)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Inverters: invReadings}

	if dmConfigured {
		dmReadings, err := telemetry.DataManagerStats(ctx, dm, dataManagerName, maxFuseCurrent)
		if err != nil {
			return nil, err
		}
		stats.DataManager = dmReadings
	}

	return stats, nil
}

// computeInvControl runs the power solver for every phase with a non-zero
// PBapp and a grid-meter reading, returning PBsent per phase and the full
// per-phase control record for the status snapshot. Phases without a meter
// reading get no PBsent.
func computeInvControl(pbAppPhases map[telemetry.Phase]float64, invReadings map[string]telemetry.InverterReading, dmReadings map[telemetry.Phase]telemetry.PhaseReading) (map[telemetry.Phase]int64, map[telemetry.Phase]PhaseControl) {
	pbSent := make(map[telemetry.Phase]int64)
	invControl := make(map[telemetry.Phase]PhaseControl)

	for _, phase := range []telemetry.Phase{telemetry.L1, telemetry.L2, telemetry.L3} {
		pbApp := pbAppPhases[phase]
		if pbApp == 0 {
			continue
		}

		meter, ok := dmReadings[phase]
		if !ok {
			continue
		}

		var pbNow float64
		for _, inv := range invReadings {
			if inv.Phase == phase {
				pbNow += float64(inv.ACSide.PowerW)
			}
		}

		result := powersolver.Solve(powersolver.Inputs{
			PBapp: pbApp,
			PBnow: pbNow,
			PGnow: float64(meter.PowerW),
			VGnow: meter.VoltageV,
			Imax:  meter.MaxAmps,
		})

		pbSent[phase] = result.PBsent
		invControl[phase] = PhaseControl{
			PBapp: pbApp, PBnow: pbNow, PGnow: float64(meter.PowerW), VGnow: meter.VoltageV, Imax: meter.MaxAmps,
			PGmax: result.PGmax, PGmin: result.PGmin,
			Pother:   result.Pother,
			PBlimMin: result.PBlimMin, PBlimMax: result.PBlimMax,
			PBsent: result.PBsent,
		}
	}

	return pbSent, invControl
}

// sleepOrCancel blocks for d, returning ctx.Err() early if ctx is cancelled
// first. Every controller's inner loop ends its iteration this way.
func sleepOrCancel(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
