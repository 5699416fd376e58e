package core

import (
	"testing"

	"github.com/fluvialworks/rivernet-sim/model"
)

// chainNetwork builds a single-thread channel: one node per elevation,
// one 100 m by 15 m reach between each consecutive pair, flowing from
// the first elevation to the last.
func chainNetwork(t *testing.T, elevations ...float64) (*RiverNetwork, *FlowDirection) {
	t.Helper()

	nodes := make([]model.RiverNode, len(elevations))
	for i, z := range elevations {
		nodes[i] = model.RiverNode{ID: i, BedrockElevation: z, TopographicElevation: z}
	}
	reaches := make([]model.Reach, len(elevations)-1)
	for i := range reaches {
		reaches[i] = model.Reach{ID: i, NodeA: i, NodeB: i + 1, Length: 100, Width: 15, Slope: 0.001}
	}

	grid, err := NewRiverNetwork(nodes, reaches)
	if err != nil {
		t.Fatalf("NewRiverNetwork: %v", err)
	}
	fd, err := NewFlowDirection(grid)
	if err != nil {
		t.Fatalf("NewFlowDirection: %v", err)
	}
	return grid, fd
}

// gravelSeed is a coarse quartz parcel at the head of the given reach.
func gravelSeed(link int) model.ParcelSeed {
	return model.ParcelSeed{
		StartingLink:   link,
		LocationInLink: 0,
		Diameter:       0.05,
		Density:        2650,
		Volume:         1,
		AbrasionRate:   0,
		ArrivalTime:    0,
		Active:         true,
	}
}

// constantDepth fills a [steps+1][links] flow-depth matrix with one
// value.
func constantDepth(depth float64, steps, links int) [][]float64 {
	m := make([][]float64, steps+1)
	for t := range m {
		m[t] = make([]float64, links)
		for i := range m[t] {
			m[t][i] = depth
		}
	}
	return m
}
