package core

import (
	"testing"

	"github.com/fluvialworks/rivernet-sim/model"
)

func TestFlowDirectionOrientsDownhill(t *testing.T) {
	// Reach 1 is declared with its endpoints reversed; orientation
	// must still run high to low.
	nodes := []model.RiverNode{
		{ID: 0, BedrockElevation: 3, TopographicElevation: 3},
		{ID: 1, BedrockElevation: 2, TopographicElevation: 2},
		{ID: 2, BedrockElevation: 1, TopographicElevation: 1},
	}
	reaches := []model.Reach{
		{ID: 0, NodeA: 0, NodeB: 1, Length: 100, Width: 15},
		{ID: 1, NodeA: 2, NodeB: 1, Length: 100, Width: 15},
	}
	grid, err := NewRiverNetwork(nodes, reaches)
	if err != nil {
		t.Fatalf("NewRiverNetwork: %v", err)
	}
	fd, err := NewFlowDirection(grid)
	if err != nil {
		t.Fatalf("NewFlowDirection: %v", err)
	}

	up, down := fd.UpstreamNodeAtLink(), fd.DownstreamNodeAtLink()
	if up[0] != 0 || down[0] != 1 {
		t.Fatalf("link 0 oriented %d->%d, want 0->1", up[0], down[0])
	}
	if up[1] != 1 || down[1] != 2 {
		t.Fatalf("link 1 oriented %d->%d, want 1->2", up[1], down[1])
	}
}

func TestFlowDirectionReceivingLink(t *testing.T) {
	_, fd := chainNetwork(t, 3, 2, 1, 0)

	wantReceiving := []int{0, 1, 2, BadIndex}
	for n, want := range wantReceiving {
		if got := fd.ReceivingLink(n); got != want {
			t.Fatalf("ReceivingLink(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestFlowDirectionReceivingLinkPicksSteepestAtConfluence(t *testing.T) {
	// Node 0 drains both to node 1 (short, steep reach) and node 2
	// (long, gentle reach); the steep one receives 0's outflow.
	nodes := []model.RiverNode{
		{ID: 0, BedrockElevation: 2, TopographicElevation: 2},
		{ID: 1, BedrockElevation: 0, TopographicElevation: 0},
		{ID: 2, BedrockElevation: 1, TopographicElevation: 1},
	}
	reaches := []model.Reach{
		{ID: 0, NodeA: 0, NodeB: 1, Length: 50, Width: 15},
		{ID: 1, NodeA: 0, NodeB: 2, Length: 500, Width: 15},
	}
	grid, err := NewRiverNetwork(nodes, reaches)
	if err != nil {
		t.Fatalf("NewRiverNetwork: %v", err)
	}
	fd, err := NewFlowDirection(grid)
	if err != nil {
		t.Fatalf("NewFlowDirection: %v", err)
	}

	if got := fd.ReceivingLink(0); got != 0 {
		t.Fatalf("ReceivingLink(0) = %d, want 0 (the steeper drop)", got)
	}
}

func TestFlowDirectionIncomingIndicator(t *testing.T) {
	grid, fd := chainNetwork(t, 3, 2, 1, 0)

	// Node 1's adjacency row is [0 1]; link 0 flows in, link 1 flows
	// out.
	row := grid.LinksAtNode(1)
	if row[0] != 0 || row[1] != 1 {
		t.Fatalf("LinksAtNode(1) = %v, want [0 1]", row)
	}
	in := fd.IncomingLinkAtNode(1)
	if in[0] != 1 || in[1] != 0 {
		t.Fatalf("IncomingLinkAtNode(1) = %v, want [1 0]", in)
	}

	// Headwater has no incoming links.
	for j, flag := range fd.IncomingLinkAtNode(0) {
		if flag != 0 {
			t.Fatalf("IncomingLinkAtNode(0)[%d] = %d, want 0", j, flag)
		}
	}
}
