package model

// ParcelSeed describes one sediment parcel at the moment it enters
// the model, either at construction or injected mid-run. The engine
// never creates parcels itself; it only moves and abrades them.
type ParcelSeed struct {
	// StartingLink is the reach the parcel begins in.
	StartingLink int

	// LocationInLink is the fractional position within the reach,
	// 0 at the upstream end and 1 at the downstream end.
	LocationInLink float64

	Diameter     float64 // m
	Density      float64 // kg/m^3
	Volume       float64 // m^3
	AbrasionRate float64 // per metre of travel

	// ArrivalTime is the time index at which the parcel arrived in
	// its starting reach.
	ArrivalTime float64

	// Active marks the parcel as part of the mobile surface layer.
	// The engine reclassifies this every step.
	Active bool
}
