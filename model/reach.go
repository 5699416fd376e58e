package model

// Reach is one channel segment connecting two nodes. Endpoints are
// given in arbitrary order; the flow direction service orients each
// reach from its higher endpoint to its lower one.
type Reach struct {
	ID    int
	NodeA int
	NodeB int

	Length float64 // m
	Width  float64 // m

	// Slope is the initial channel slope in m/m. The engine
	// recomputes it from node elevations every step; a zero value
	// here is replaced during the first slope pass.
	Slope float64
}
