package core

import (
	"fmt"

	"github.com/fluvialworks/rivernet-sim/model"
)

// BadIndex is the reserved "no link / no node" sentinel used in
// adjacency rows and flow-direction lookups.
const BadIndex = -1

// OutOfNetwork marks a parcel that has left the network through the
// terminal reach. Once a parcel carries this link id it is retired
// permanently: no further movement, abrasion, or classification.
const OutOfNetwork = BadIndex - 1

// RiverNetwork is the directed channel network the engine operates
// on: reaches (links) with length, width, and slope, and nodes with
// bedrock and topographic elevation. The transport engine is the
// only writer of slopes and topographic elevations; everything else
// is fixed at construction.
type RiverNetwork struct {
	nodes   []model.RiverNode
	reaches []model.Reach

	// linksAtNode has one row per node listing incident reach ids,
	// padded to a uniform width with BadIndex.
	linksAtNode [][]int
}

// NewRiverNetwork validates the node and reach sets and builds the
// adjacency structure.
func NewRiverNetwork(nodes []model.RiverNode, reaches []model.Reach) (*RiverNetwork, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: network has no nodes", ErrBadNode)
	}
	for i, n := range nodes {
		if n.ID != i {
			return nil, fmt.Errorf("%w: node %d has id %d, ids must be dense", ErrBadNode, i, n.ID)
		}
	}
	for i, r := range reaches {
		if r.ID != i {
			return nil, fmt.Errorf("%w: reach %d has id %d, ids must be dense", ErrBadReach, i, r.ID)
		}
		if r.NodeA < 0 || r.NodeA >= len(nodes) || r.NodeB < 0 || r.NodeB >= len(nodes) {
			return nil, fmt.Errorf("%w: reach %d references unknown node", ErrBadReach, i)
		}
		if r.NodeA == r.NodeB {
			return nil, fmt.Errorf("%w: reach %d is a self loop", ErrBadReach, i)
		}
		if r.Length <= 0 {
			return nil, fmt.Errorf("%w: reach %d has non-positive length", ErrBadReach, i)
		}
		if r.Width <= 0 {
			return nil, fmt.Errorf("%w: reach %d has non-positive width", ErrBadReach, i)
		}
		if r.Slope < 0 {
			return nil, fmt.Errorf("%w: reach %d has negative slope", ErrBadReach, i)
		}
	}

	incident := make([][]int, len(nodes))
	for _, r := range reaches {
		incident[r.NodeA] = append(incident[r.NodeA], r.ID)
		incident[r.NodeB] = append(incident[r.NodeB], r.ID)
	}
	maxDegree := 0
	for _, row := range incident {
		if len(row) > maxDegree {
			maxDegree = len(row)
		}
	}
	padded := make([][]int, len(nodes))
	for n, row := range incident {
		padded[n] = make([]int, maxDegree)
		for j := range padded[n] {
			if j < len(row) {
				padded[n][j] = row[j]
			} else {
				padded[n][j] = BadIndex
			}
		}
	}

	return &RiverNetwork{
		nodes:       append([]model.RiverNode(nil), nodes...),
		reaches:     append([]model.Reach(nil), reaches...),
		linksAtNode: padded,
	}, nil
}

// NumNodes returns the number of nodes in the network.
func (rn *RiverNetwork) NumNodes() int { return len(rn.nodes) }

// NumLinks returns the number of reaches in the network.
func (rn *RiverNetwork) NumLinks() int { return len(rn.reaches) }

// LinksAtNode returns the padded adjacency row for node n. Entries
// beyond the node's degree are BadIndex.
func (rn *RiverNetwork) LinksAtNode(n int) []int { return rn.linksAtNode[n] }

// Reach returns the reach definition for link i.
func (rn *RiverNetwork) Reach(i int) model.Reach { return rn.reaches[i] }

// Length returns the length of reach i in metres.
func (rn *RiverNetwork) Length(i int) float64 { return rn.reaches[i].Length }

// Width returns the channel width of reach i in metres.
func (rn *RiverNetwork) Width(i int) float64 { return rn.reaches[i].Width }

// Slope returns the channel slope of reach i.
func (rn *RiverNetwork) Slope(i int) float64 { return rn.reaches[i].Slope }

// SetSlope overwrites the channel slope of reach i. Called by the
// engine's slope recomputation pass.
func (rn *RiverNetwork) SetSlope(i int, s float64) { rn.reaches[i].Slope = s }

// BedrockElevation returns the fixed bedrock elevation at node n.
func (rn *RiverNetwork) BedrockElevation(n int) float64 { return rn.nodes[n].BedrockElevation }

// TopographicElevation returns the current land surface elevation at
// node n.
func (rn *RiverNetwork) TopographicElevation(n int) float64 {
	return rn.nodes[n].TopographicElevation
}

// SetTopographicElevation overwrites the land surface elevation at
// node n. Called by the engine's elevation adjustment pass.
func (rn *RiverNetwork) SetTopographicElevation(n int, z float64) {
	rn.nodes[n].TopographicElevation = z
}
