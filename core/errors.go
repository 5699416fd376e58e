package core

import "errors"

// Error kinds surfaced by the transport engine. Every specific
// failure wraps one of these so callers can classify with errors.Is.
// All of them are fatal for the simulation run; a step that fails may
// have partially mutated elevations, slopes, and parcel attributes.
var (
	// ErrConfiguration covers invalid constructor input: nil or
	// mismatched collaborators, missing parcel attributes, porosity
	// out of range, or an unsupported transport method.
	ErrConfiguration = errors.New("invalid transporter configuration")

	// ErrPhysicalInvariant covers states that are physically
	// impossible: negative channel slope, negative alluvium depth,
	// negative reference Shields stress, or a parcel gaining volume
	// through abrasion.
	ErrPhysicalInvariant = errors.New("physical invariant violated")

	// ErrNoParcels is returned when a step begins with no parcels
	// left in the network.
	ErrNoParcels = errors.New("no parcels remain in network")

	ErrUnknownAttribute = errors.New("unknown parcel attribute")
	ErrBadReach         = errors.New("invalid reach")
	ErrBadNode          = errors.New("invalid node")
)
