// Package powersolver computes PBsent, the battery power a phase is allowed
// to request after clamping to the headroom the main fuse leaves once
// everything else on that phase (PV, loads, heat pumps) is accounted for.
package powersolver

import "math"

// Inputs are the per-phase measurements and request feeding one PBsent
// calculation.
type Inputs struct {
	PBapp float64 // requested battery power: negative = charge, positive = discharge
	PBnow float64 // current measured battery AC-side power
	PGnow float64 // current grid power on this phase
	VGnow float64 // grid voltage on this phase, positive
	Imax  float64 // main-fuse current limit on this phase, positive
}

// Result carries every intermediate value alongside PBsent, since the
// Snapshot's inv_control section exposes them all.
type Result struct {
	PGmax     float64
	PGmin     float64
	Pother    float64
	PBlimMin  float64
	PBlimMax  float64
	PBsent    int64
}

// Solve computes PBsent per the fixed envelope derivation: PGmax = |VGnow *
// Imax|, PGmin = -PGmax, Pother = PGnow - PBnow, PBlim_min = PGmin - Pother,
// PBlim_max = PGmax - Pother. A charge request (PBapp<0) is clamped to
// max(PBapp, PBlim_min); a discharge request (PBapp>=0) is clamped to
// min(PBapp, PBlim_max). The result is truncated toward zero.
func Solve(in Inputs) Result {
	pgMax := math.Abs(in.VGnow * in.Imax)
	pgMin := -pgMax
	pother := in.PGnow - in.PBnow
	pblimMin := pgMin - pother
	pblimMax := pgMax - pother

	var clamped float64
	if in.PBapp < 0 {
		clamped = math.Max(in.PBapp, pblimMin)
	} else {
		clamped = math.Min(in.PBapp, pblimMax)
	}

	return Result{
		PGmax:    pgMax,
		PGmin:    pgMin,
		Pother:   pother,
		PBlimMin: pblimMin,
		PBlimMax: pblimMax,
		PBsent:   int64(math.Trunc(clamped)),
	}
}
