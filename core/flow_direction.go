package core

import "fmt"

// FlowDirection resolves which way water (and therefore sediment)
// moves through a RiverNetwork. Each reach is oriented from its
// higher endpoint to its lower one, steepest-descent style, using
// the topographic elevations present at construction time.
//
// The orientation is computed once; the engine's per-step elevation
// adjustments change magnitudes, not the direction of drainage.
type FlowDirection struct {
	grid *RiverNetwork

	upstreamNode   []int // per link
	downstreamNode []int // per link

	// incomingAtNode parallels RiverNetwork.LinksAtNode: a 1 marks
	// an adjacency slot whose link delivers flow into the node.
	incomingAtNode [][]int8

	// receivingLink is, per node, the link that carries the node's
	// outflow, or BadIndex at network outlets.
	receivingLink []int
}

// NewFlowDirection orients every reach of the network downhill and
// derives the per-node incoming and receiving structures.
func NewFlowDirection(grid *RiverNetwork) (*FlowDirection, error) {
	if grid == nil {
		return nil, fmt.Errorf("%w: nil network", ErrConfiguration)
	}

	nLinks := grid.NumLinks()
	nNodes := grid.NumNodes()

	fd := &FlowDirection{
		grid:           grid,
		upstreamNode:   make([]int, nLinks),
		downstreamNode: make([]int, nLinks),
		incomingAtNode: make([][]int8, nNodes),
		receivingLink:  make([]int, nNodes),
	}

	for i := 0; i < nLinks; i++ {
		r := grid.Reach(i)
		za := grid.TopographicElevation(r.NodeA)
		zb := grid.TopographicElevation(r.NodeB)
		if za >= zb {
			fd.upstreamNode[i] = r.NodeA
			fd.downstreamNode[i] = r.NodeB
		} else {
			fd.upstreamNode[i] = r.NodeB
			fd.downstreamNode[i] = r.NodeA
		}
	}

	for n := 0; n < nNodes; n++ {
		row := grid.LinksAtNode(n)
		fd.incomingAtNode[n] = make([]int8, len(row))

		// Out of the links draining this node, the steepest one
		// receives its flow.
		best := BadIndex
		bestDrop := -1.0
		for j, link := range row {
			if link == BadIndex {
				continue
			}
			if fd.downstreamNode[link] == n {
				fd.incomingAtNode[n][j] = 1
			}
			if fd.upstreamNode[link] == n {
				drop := (grid.TopographicElevation(n) -
					grid.TopographicElevation(fd.downstreamNode[link])) / grid.Length(link)
				if drop > bestDrop {
					bestDrop = drop
					best = link
				}
			}
		}
		fd.receivingLink[n] = best
	}

	return fd, nil
}

// UpstreamNodeAtLink returns the upstream node of each link.
func (fd *FlowDirection) UpstreamNodeAtLink() []int { return fd.upstreamNode }

// DownstreamNodeAtLink returns the downstream node of each link.
func (fd *FlowDirection) DownstreamNodeAtLink() []int { return fd.downstreamNode }

// IncomingLinkAtNode returns, for node n, an indicator row aligned
// with the network's LinksAtNode row: 1 where the incident link
// delivers flow into the node.
func (fd *FlowDirection) IncomingLinkAtNode(n int) []int8 { return fd.incomingAtNode[n] }

// ReceivingLink returns the link carrying node n's outflow, or
// BadIndex when the node is a network outlet.
func (fd *FlowDirection) ReceivingLink(n int) int { return fd.receivingLink[n] }
