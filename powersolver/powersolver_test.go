package powersolver

import "testing"

func TestSolvePureChargeWithinEnvelope(t *testing.T) {
	r := Solve(Inputs{PBapp: -2000, PBnow: 0, PGnow: 0, VGnow: 230, Imax: 16})
	if r.PGmax != 230*16 {
		t.Errorf("PGmax = %v, want %v", r.PGmax, 230*16)
	}
	if r.PBsent != -2000 {
		t.Errorf("PBsent = %v, want -2000 (well within envelope)", r.PBsent)
	}
}

func TestSolveChargeClippedByFuse(t *testing.T) {
	// Envelope is +-3680W; a -10000W charge request should clip to -3680.
	r := Solve(Inputs{PBapp: -10000, PBnow: 0, PGnow: 0, VGnow: 230, Imax: 16})
	if r.PBsent != -3680 {
		t.Errorf("PBsent = %v, want -3680", r.PBsent)
	}
}

func TestSolveDischargeClippedByExistingExport(t *testing.T) {
	// Phase is already exporting 3000W of PV (Pother=3000) on a 16A/230V fuse
	// (envelope +-3680). PBlim_max = 3680 - 3000 = 680.
	r := Solve(Inputs{PBapp: 5000, PBnow: 0, PGnow: 3000, VGnow: 230, Imax: 16})
	if r.Pother != 3000 {
		t.Errorf("Pother = %v, want 3000", r.Pother)
	}
	if r.PBlimMax != 680 {
		t.Errorf("PBlimMax = %v, want 680", r.PBlimMax)
	}
	if r.PBsent != 680 {
		t.Errorf("PBsent = %v, want 680", r.PBsent)
	}
}

func TestSolveTruncatesTowardZero(t *testing.T) {
	r := Solve(Inputs{PBapp: -1999.9, PBnow: 0, PGnow: 0, VGnow: 230, Imax: 16})
	if r.PBsent != -1999 {
		t.Errorf("PBsent = %v, want -1999 (truncated toward zero, not floored)", r.PBsent)
	}
}

func TestSolveNeverExceedsEnvelope(t *testing.T) {
	cases := []Inputs{
		{PBapp: -99999, PBnow: 500, PGnow: -200, VGnow: 230, Imax: 25},
		{PBapp: 99999, PBnow: -500, PGnow: 1200, VGnow: 230, Imax: 25},
		{PBapp: 0, PBnow: 0, PGnow: 0, VGnow: 230, Imax: 25},
	}
	for _, in := range cases {
		r := Solve(in)
		if float64(r.PBsent) < r.PBlimMin-1 || float64(r.PBsent) > r.PBlimMax+1 {
			t.Errorf("Solve(%+v) = %v, outside envelope [%v, %v]", in, r.PBsent, r.PBlimMin, r.PBlimMax)
		}
	}
}
