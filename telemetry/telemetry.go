// Package telemetry reads the fixed register maps for inverter battery/AC
// properties and the grid meter's per-phase properties, producing the
// structured snapshots the controllers and HTTP status endpoint consume.
package telemetry

import (
	"context"
	"fmt"

	"github.com/hartman-ems/battery-ems/codec"
	"github.com/hartman-ems/battery-ems/modbusmgr"
)

// Phase is one of the three grid phases an inverter or meter channel is
// wired to.
type Phase string

const (
	L1 Phase = "L1"
	L2 Phase = "L2"
	L3 Phase = "L3"
)

// phaseRegisters is the per-phase AC-side register map, shared by the
// inverter and the data manager readers (addresses differ between them).
type phaseRegisters struct {
	p, v, a int
}

// inverterPhaseRegs are the inverter-side AC registers per connected phase.
var inverterPhaseRegs = map[Phase]phaseRegisters{
	L1: {p: 30777, v: 30783, a: 30977},
	L2: {p: 30779, v: 30785, a: 30979},
	L3: {p: 30781, v: 30787, a: 30981},
}

// dataManagerPhaseRegs are the grid meter's per-phase registers.
var dataManagerPhaseRegs = map[Phase]phaseRegisters{
	L1: {v: 31529, a: 31535, p: 31503},
	L2: {v: 31531, a: 31537, p: 31505},
	L3: {v: 31533, a: 31539, p: 31507},
}

const dataManagerDeviceID byte = 2
const inverterDeviceID byte = 3

// BatteryFlow classifies an inverter's AC-side flow from the sign of its
// power reading.
type BatteryFlow string

const (
	NoFlow      BatteryFlow = "no flow"
	Charging    BatteryFlow = "charging"
	Discharging BatteryFlow = "discharging"
)

// GridFlow classifies a grid phase's flow from the sign of its power
// reading.
type GridFlow string

const (
	GridNoFlow  GridFlow = "no flow"
	Drawing     GridFlow = "drawing from grid"
	Supplying   GridFlow = "supplying to grid"
)

// BatterySide holds one inverter's battery-facing measurements.
type BatterySide struct {
	CurrentA      float64
	VoltageV      float64
	Status        BatteryFlow
	ChargePercent float64
	TempLowC      float64
	TempHighC     float64
}

// ACSide holds one inverter's grid-facing (AC) measurements.
type ACSide struct {
	CurrentA float64
	VoltageV float64
	PowerW   int64
}

// InverterReading is one inverter's full telemetry snapshot.
type InverterReading struct {
	Phase   Phase
	Battery BatterySide
	ACSide  ACSide
}

// PhaseReading is one grid phase's meter snapshot.
type PhaseReading struct {
	CurrentA float64
	MaxAmps  float64
	VoltageV float64
	PowerW   int64
	Status   GridFlow
}

// PhaseMap tells BatteryStats which connected_phase each enabled inverter is
// wired to.
type PhaseMap map[string]Phase

// BatteryStats issues the five parallel multi-client reads for battery-side
// properties, then per-inverter phase-specific AC-side reads, for every
// inverter present in all five result maps.
func BatteryStats(ctx context.Context, inverters *modbusmgr.Manager, phases PhaseMap) (map[string]InverterReading, error) {
	tempsHigh, err := inverters.ReadAll(ctx, 32221, codec.S32, inverterDeviceID, codec.TEMP)
	if err != nil {
		return nil, fmt.Errorf("telemetry: battery_stats temps_high: %w", err)
	}
	tempsLow, err := inverters.ReadAll(ctx, 32227, codec.S32, inverterDeviceID, codec.TEMP)
	if err != nil {
		return nil, fmt.Errorf("telemetry: battery_stats temps_low: %w", err)
	}
	charges, err := inverters.ReadAll(ctx, 32233, codec.U32, inverterDeviceID, codec.FIX2)
	if err != nil {
		return nil, fmt.Errorf("telemetry: battery_stats charge: %w", err)
	}
	voltages, err := inverters.ReadAll(ctx, 30851, codec.U32, inverterDeviceID, codec.FIX2)
	if err != nil {
		return nil, fmt.Errorf("telemetry: battery_stats voltage: %w", err)
	}
	currents, err := inverters.ReadAll(ctx, 30843, codec.S32, inverterDeviceID, codec.FIX3)
	if err != nil {
		return nil, fmt.Errorf("telemetry: battery_stats current: %w", err)
	}

	out := make(map[string]InverterReading)
	for name := range tempsHigh {
		if _, ok := tempsLow[name]; !ok {
			continue
		}
		if _, ok := charges[name]; !ok {
			continue
		}
		if _, ok := voltages[name]; !ok {
			continue
		}
		if _, ok := currents[name]; !ok {
			continue
		}

		phase, ok := phases[name]
		if !ok {
			continue
		}
		regs, ok := inverterPhaseRegs[phase]
		if !ok {
			return nil, fmt.Errorf("telemetry: %q has unrecognized connected_phase %q", name, phase)
		}

		acPow, err := inverters.ReadOne(ctx, name, regs.p, codec.S32, inverterDeviceID, codec.FIX0)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %s ac power: %w", name, err)
		}
		acVol, err := inverters.ReadOne(ctx, name, regs.v, codec.U32, inverterDeviceID, codec.FIX2)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %s ac voltage: %w", name, err)
		}
		acAmp, err := inverters.ReadOne(ctx, name, regs.a, codec.S32, inverterDeviceID, codec.FIX3)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %s ac current: %w", name, err)
		}

		acPowW := asInt64(acPow)
		status := NoFlow
		switch {
		case acPowW < 0:
			status = Charging
		case acPowW > 0:
			status = Discharging
		}

		out[name] = InverterReading{
			Phase: phase,
			Battery: BatterySide{
				CurrentA:      asFloat64(currents[name]),
				VoltageV:      asFloat64(voltages[name]),
				Status:        status,
				ChargePercent: asFloat64(charges[name]) * 10,
				TempLowC:      asFloat64(tempsLow[name]),
				TempHighC:     asFloat64(tempsHigh[name]),
			},
			ACSide: ACSide{
				CurrentA: asFloat64(acAmp),
				VoltageV: asFloat64(acVol),
				PowerW:   acPowW,
			},
		}
	}
	return out, nil
}

// DataManagerStats reads the three grid phases from the data manager client
// (always device_id=2), annotating each with the configured max fuse
// current.
func DataManagerStats(ctx context.Context, dm *modbusmgr.Manager, dmName string, maxFuseCurrent float64) (map[Phase]PhaseReading, error) {
	out := make(map[Phase]PhaseReading, 3)
	for _, phase := range []Phase{L1, L2, L3} {
		regs := dataManagerPhaseRegs[phase]

		current, err := dm.ReadOne(ctx, dmName, regs.a, codec.S32, dataManagerDeviceID, codec.FIX3)
		if err != nil {
			return nil, fmt.Errorf("telemetry: data_manager_stats %s current: %w", phase, err)
		}
		voltage, err := dm.ReadOne(ctx, dmName, regs.v, codec.U32, dataManagerDeviceID, codec.FIX2)
		if err != nil {
			return nil, fmt.Errorf("telemetry: data_manager_stats %s voltage: %w", phase, err)
		}
		power, err := dm.ReadOne(ctx, dmName, regs.p, codec.S32, dataManagerDeviceID, codec.FIX0)
		if err != nil {
			return nil, fmt.Errorf("telemetry: data_manager_stats %s power: %w", phase, err)
		}

		powerW := asInt64(power)
		status := GridNoFlow
		switch {
		case powerW < 0:
			status = Drawing
		case powerW > 0:
			status = Supplying
		}

		out[phase] = PhaseReading{
			CurrentA: asFloat64(current),
			MaxAmps:  maxFuseCurrent,
			VoltageV: asFloat64(voltage),
			PowerW:   powerW,
			Status:   status,
		}
	}
	return out, nil
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return 0
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
