package model

// RiverNode is one junction in the channel network. Topographic
// elevation is bedrock plus the depth of stored alluvium and is
// rewritten by the transport engine once per step; bedrock is fixed.
type RiverNode struct {
	ID   int
	Name string

	BedrockElevation     float64 // m
	TopographicElevation float64 // m
}
