package core

import (
	"errors"
	"math"
	"testing"

	"github.com/fluvialworks/rivernet-sim/model"
)

// TestSingleParcelTransportSequence runs one gravel parcel down a
// three-reach channel and checks the reach it occupies at every time
// slice. Under a constant 2 m flow the parcel settles into a steady
// velocity of about 0.36 m/s, crossing one reach roughly every five
// minute-long steps.
func TestSingleParcelTransportSequence(t *testing.T) {
	grid, fd := chainNetwork(t, 3, 2, 1, 0)
	ps, err := NewParcelStore([]model.ParcelSeed{gravelSeed(0)}, 0)
	if err != nil {
		t.Fatalf("NewParcelStore: %v", err)
	}
	tr, err := NewTransporter(grid, ps, fd, constantDepth(2, 10, grid.NumLinks()), DefaultConfig())
	if err != nil {
		t.Fatalf("NewTransporter: %v", err)
	}

	for s := 1; s <= 10; s++ {
		if err := tr.RunOneStep(60); err != nil {
			t.Fatalf("step %d: %v", s, err)
		}
	}

	wantLink := []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 2}
	for s, want := range wantLink {
		if got := ps.CurrentLink(s)[0]; got != want {
			t.Fatalf("time slice %d: parcel in reach %d, want %d", s, got, want)
		}
	}

	if got := tr.Time(); got != 600 {
		t.Fatalf("Time = %g, want 600", got)
	}
	if got := tr.ParcelsInNetwork(); got != 1 {
		t.Fatalf("ParcelsInNetwork = %d, want 1", got)
	}

	// A single parcel never clears the thickness threshold, so the
	// layer stays near the bootstrap default throughout.
	for i, th := range tr.ActiveLayerThickness() {
		if math.Abs(th-defaultLayerThickness) > 1e-3 {
			t.Fatalf("thickness[%d] = %g, want near %g", i, th, defaultLayerThickness)
		}
	}

	// Volume is conserved while the parcel is in-network: abrasion is
	// zero, so exactly one cubic metre sits in its current reach.
	total := 0.0
	for _, v := range tr.LinkTotalVolume() {
		total += v
	}
	if math.Abs(total-1) > 1e-12 {
		t.Fatalf("total in-network volume = %g, want 1", total)
	}
}

func TestRunUntilNetworkEmpties(t *testing.T) {
	grid, fd := chainNetwork(t, 3, 2, 1, 0)
	ps, err := NewParcelStore([]model.ParcelSeed{gravelSeed(0)}, 0)
	if err != nil {
		t.Fatalf("NewParcelStore: %v", err)
	}
	tr, err := NewTransporter(grid, ps, fd, constantDepth(2, 40, grid.NumLinks()), DefaultConfig())
	if err != nil {
		t.Fatalf("NewTransporter: %v", err)
	}

	var stopErr error
	for s := 1; s <= 40; s++ {
		if stopErr = tr.RunOneStep(60); stopErr != nil {
			break
		}
	}
	if !errors.Is(stopErr, ErrNoParcels) {
		t.Fatalf("run ended with %v, want ErrNoParcels once the parcel exits", stopErr)
	}

	last := ps.NumTimes() - 1
	if got := ps.CurrentLink(last)[0]; got != OutOfNetwork {
		t.Fatalf("final link = %d, want OutOfNetwork", got)
	}
	if got := ps.Location(last)[0]; !math.IsNaN(got) {
		t.Fatalf("final location = %g, want NaN", got)
	}
	if got := tr.ParcelsInNetwork(); got != 0 {
		t.Fatalf("ParcelsInNetwork = %d, want 0", got)
	}

	// The parcel covered the full channel before leaving.
	if got := tr.CumulativeDistance(0); got < 300 {
		t.Fatalf("CumulativeDistance = %g, want >= 300 (the channel length)", got)
	}
}
