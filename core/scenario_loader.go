// core/scenario_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fluvialworks/rivernet-sim/model"
)

// Scenario bundles everything a run needs, built from one JSON
// document: the network, its flow direction, the seeded parcel
// store, and the flow-depth matrix.
type Scenario struct {
	Network   *RiverNetwork
	Flow      *FlowDirection
	Parcels   *ParcelStore
	FlowDepth [][]float64
	Timesteps int
}

// internal JSON shapes – kept unexported so we're free to evolve them.
type scenarioJSON struct {
	Nodes     []nodeJSON    `json:"nodes"`
	Reaches   []reachJSON   `json:"reaches"`
	Parcels   []parcelJSON  `json:"parcels"`
	FlowDepth flowDepthJSON `json:"flow_depth"`
	Timesteps int           `json:"timesteps"`
}

type nodeJSON struct {
	ID                   int      `json:"id"`
	Name                 string   `json:"name"`
	BedrockElevation     float64  `json:"bedrock_elevation"`
	TopographicElevation *float64 `json:"topographic_elevation"` // optional; defaults to bedrock
}

type reachJSON struct {
	ID     int     `json:"id"`
	NodeA  int     `json:"node_a"`
	NodeB  int     `json:"node_b"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Slope  float64 `json:"slope"`
}

type parcelJSON struct {
	StartingLink   int      `json:"starting_link"`
	LocationInLink float64  `json:"location_in_link"`
	Diameter       float64  `json:"diameter"`
	Density        *float64 `json:"density"`  // optional; defaults to quartz
	Volume         *float64 `json:"volume"`   // optional; defaults to 1 m^3
	AbrasionRate   float64  `json:"abrasion_rate"`
	ArrivalTime    float64  `json:"arrival_time"`
}

type flowDepthJSON struct {
	// Constant fills the whole matrix with one depth. PerStep gives
	// the full [timesteps+1][links] matrix explicitly.
	Constant *float64    `json:"constant"`
	PerStep  [][]float64 `json:"per_step"`
}

const (
	defaultGrainDensity = 2650.0 // quartz, kg/m^3
	defaultParcelVolume = 1.0    // m^3
)

// LoadScenario reads a JSON scenario from r and builds the network,
// flow direction, parcel store, and flow-depth matrix. Structural
// problems surface here; physical validation happens in the
// collaborators' constructors.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var payload scenarioJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}
	if payload.Timesteps <= 0 {
		return nil, fmt.Errorf("LoadScenario: timesteps must be positive, got %d", payload.Timesteps)
	}

	nodes := make([]model.RiverNode, len(payload.Nodes))
	for i, jn := range payload.Nodes {
		topo := jn.BedrockElevation
		if jn.TopographicElevation != nil {
			topo = *jn.TopographicElevation
		}
		nodes[i] = model.RiverNode{
			ID:                   jn.ID,
			Name:                 jn.Name,
			BedrockElevation:     jn.BedrockElevation,
			TopographicElevation: topo,
		}
	}

	reaches := make([]model.Reach, len(payload.Reaches))
	for i, jr := range payload.Reaches {
		reaches[i] = model.Reach{
			ID:     jr.ID,
			NodeA:  jr.NodeA,
			NodeB:  jr.NodeB,
			Length: jr.Length,
			Width:  jr.Width,
			Slope:  jr.Slope,
		}
	}

	network, err := NewRiverNetwork(nodes, reaches)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	flow, err := NewFlowDirection(network)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}

	seeds := make([]model.ParcelSeed, len(payload.Parcels))
	for i, jp := range payload.Parcels {
		density := defaultGrainDensity
		if jp.Density != nil {
			density = *jp.Density
		}
		volume := defaultParcelVolume
		if jp.Volume != nil {
			volume = *jp.Volume
		}
		seeds[i] = model.ParcelSeed{
			StartingLink:   jp.StartingLink,
			LocationInLink: jp.LocationInLink,
			Diameter:       jp.Diameter,
			Density:        density,
			Volume:         volume,
			AbrasionRate:   jp.AbrasionRate,
			ArrivalTime:    jp.ArrivalTime,
			Active:         true,
		}
	}
	parcels, err := NewParcelStore(seeds, 0)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}

	depth, err := buildFlowDepth(payload.FlowDepth, payload.Timesteps, network.NumLinks())
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}

	return &Scenario{
		Network:   network,
		Flow:      flow,
		Parcels:   parcels,
		FlowDepth: depth,
		Timesteps: payload.Timesteps,
	}, nil
}

func buildFlowDepth(spec flowDepthJSON, timesteps, numLinks int) ([][]float64, error) {
	if spec.PerStep != nil {
		if len(spec.PerStep) != timesteps+1 {
			return nil, fmt.Errorf("flow_depth.per_step has %d rows, want timesteps+1 = %d",
				len(spec.PerStep), timesteps+1)
		}
		return spec.PerStep, nil
	}
	if spec.Constant == nil {
		return nil, fmt.Errorf("flow_depth needs either constant or per_step")
	}
	depth := make([][]float64, timesteps+1)
	for t := range depth {
		depth[t] = make([]float64, numLinks)
		for i := range depth[t] {
			depth[t][i] = *spec.Constant
		}
	}
	return depth, nil
}
