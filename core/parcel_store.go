package core

import (
	"fmt"
	"math"

	"github.com/fluvialworks/rivernet-sim/model"
)

// Attribute names carried by the parcel store. The per-time
// attributes get a fresh column slice every step; density and
// abrasion rate are fixed per parcel.
const (
	AttrArrivalTime    = "time_arrival_in_link"
	AttrAbrasionRate   = "abrasion_rate"
	AttrDensity        = "density"
	AttrActiveLayer    = "active_layer"
	AttrLocationInLink = "location_in_link"
	AttrDiameter       = "grain_diameter"
	AttrVolume         = "volume"
)

// requiredParcelAttributes are the attributes the transport engine
// needs present before it will accept a store.
var requiredParcelAttributes = []string{
	AttrArrivalTime,
	AttrAbrasionRate,
	AttrDensity,
	AttrActiveLayer,
	AttrLocationInLink,
	AttrDiameter,
	AttrVolume,
}

// ParcelStore is an append-only, time-indexed columnar record of
// parcel attributes: one row per parcel, one column slice per
// simulated time. Appending a new slice carries the previous slice's
// values forward; the engine then mutates the newest slice in place
// during the step.
//
// Parcels added mid-run only have records from the slice they were
// added in onward, so older slices may be shorter than newer ones.
type ParcelStore struct {
	times []float64

	currentLink [][]int     // [time][parcel]; OutOfNetwork once retired
	arrival     [][]float64 // [time][parcel]
	active      [][]bool    // [time][parcel]
	location    [][]float64 // [time][parcel]; NaN when off network
	diameter    [][]float64 // [time][parcel] m
	volume      [][]float64 // [time][parcel] m^3

	density  []float64 // per parcel, kg/m^3
	abrasion []float64 // per parcel, 1/m
}

// NewParcelStore builds a store whose zeroth time slice holds the
// given parcel seeds.
func NewParcelStore(seeds []model.ParcelSeed, startTime float64) (*ParcelStore, error) {
	ps := &ParcelStore{
		times:       []float64{startTime},
		currentLink: [][]int{nil},
		arrival:     [][]float64{nil},
		active:      [][]bool{nil},
		location:    [][]float64{nil},
		diameter:    [][]float64{nil},
		volume:      [][]float64{nil},
	}
	if err := ps.AddParcels(seeds); err != nil {
		return nil, err
	}
	return ps, nil
}

// AddParcels appends parcels to the newest time slice. Earlier
// slices are untouched; the new parcels simply have no records there.
func (ps *ParcelStore) AddParcels(seeds []model.ParcelSeed) error {
	t := len(ps.times) - 1
	for i, s := range seeds {
		if s.Volume <= 0 {
			return fmt.Errorf("%w: parcel %d has non-positive volume", ErrConfiguration, i)
		}
		if s.Diameter <= 0 {
			return fmt.Errorf("%w: parcel %d has non-positive diameter", ErrConfiguration, i)
		}
		if s.Density <= 0 {
			return fmt.Errorf("%w: parcel %d has non-positive density", ErrConfiguration, i)
		}
		if s.AbrasionRate < 0 {
			return fmt.Errorf("%w: parcel %d has negative abrasion rate", ErrConfiguration, i)
		}
		if s.LocationInLink < 0 || s.LocationInLink > 1 {
			return fmt.Errorf("%w: parcel %d location %g outside [0,1]", ErrConfiguration, i, s.LocationInLink)
		}
		ps.currentLink[t] = append(ps.currentLink[t], s.StartingLink)
		ps.arrival[t] = append(ps.arrival[t], s.ArrivalTime)
		ps.active[t] = append(ps.active[t], s.Active)
		ps.location[t] = append(ps.location[t], s.LocationInLink)
		ps.diameter[t] = append(ps.diameter[t], s.Diameter)
		ps.volume[t] = append(ps.volume[t], s.Volume)
		ps.density = append(ps.density, s.Density)
		ps.abrasion = append(ps.abrasion, s.AbrasionRate)
	}
	return nil
}

// NumParcels returns the number of parcels ever added.
func (ps *ParcelStore) NumParcels() int { return len(ps.density) }

// NumTimes returns the number of recorded time slices.
func (ps *ParcelStore) NumTimes() int { return len(ps.times) }

// Times returns the recorded simulation times.
func (ps *ParcelStore) Times() []float64 { return ps.times }

// HasAttribute reports whether the store carries the named attribute.
func (ps *ParcelStore) HasAttribute(name string) bool {
	for _, a := range requiredParcelAttributes {
		if a == name {
			return true
		}
	}
	return false
}

// AddTimeSlice appends a new slice at the given simulation time,
// carrying every per-time attribute forward from the previous slice.
func (ps *ParcelStore) AddTimeSlice(simTime float64) {
	last := len(ps.times) - 1
	ps.times = append(ps.times, simTime)
	ps.currentLink = append(ps.currentLink, append([]int(nil), ps.currentLink[last]...))
	ps.arrival = append(ps.arrival, append([]float64(nil), ps.arrival[last]...))
	ps.active = append(ps.active, append([]bool(nil), ps.active[last]...))
	ps.location = append(ps.location, append([]float64(nil), ps.location[last]...))
	ps.diameter = append(ps.diameter, append([]float64(nil), ps.diameter[last]...))
	ps.volume = append(ps.volume, append([]float64(nil), ps.volume[last]...))
}

// CurrentLink returns the mutable current-link column at timeIdx.
func (ps *ParcelStore) CurrentLink(timeIdx int) []int { return ps.currentLink[timeIdx] }

// Arrival returns the mutable arrival-time column at timeIdx.
func (ps *ParcelStore) Arrival(timeIdx int) []float64 { return ps.arrival[timeIdx] }

// Active returns the mutable active-layer column at timeIdx.
func (ps *ParcelStore) Active(timeIdx int) []bool { return ps.active[timeIdx] }

// Location returns the mutable location-in-link column at timeIdx.
func (ps *ParcelStore) Location(timeIdx int) []float64 { return ps.location[timeIdx] }

// Diameter returns the mutable grain-diameter column at timeIdx.
func (ps *ParcelStore) Diameter(timeIdx int) []float64 { return ps.diameter[timeIdx] }

// Volume returns the mutable volume column at timeIdx.
func (ps *ParcelStore) Volume(timeIdx int) []float64 { return ps.volume[timeIdx] }

// Density returns the per-parcel grain density.
func (ps *ParcelStore) Density() []float64 { return ps.density }

// AbrasionRate returns the per-parcel abrasion rate.
func (ps *ParcelStore) AbrasionRate() []float64 { return ps.abrasion }

// GetFloat reads the named float attribute for the given parcel ids
// at timeIdx.
func (ps *ParcelStore) GetFloat(name string, timeIdx int, ids []int) ([]float64, error) {
	col, err := ps.floatColumn(name, timeIdx)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(col) {
			return nil, fmt.Errorf("%w: parcel %d has no record at time index %d", ErrUnknownAttribute, id, timeIdx)
		}
		out[i] = col[id]
	}
	return out, nil
}

// SetFloat writes the named float attribute for the given parcel ids
// at timeIdx.
func (ps *ParcelStore) SetFloat(name string, timeIdx int, ids []int, values []float64) error {
	col, err := ps.floatColumn(name, timeIdx)
	if err != nil {
		return err
	}
	if len(ids) != len(values) {
		return fmt.Errorf("%w: %d ids for %d values", ErrUnknownAttribute, len(ids), len(values))
	}
	for i, id := range ids {
		if id < 0 || id >= len(col) {
			return fmt.Errorf("%w: parcel %d has no record at time index %d", ErrUnknownAttribute, id, timeIdx)
		}
		col[id] = values[i]
	}
	return nil
}

func (ps *ParcelStore) floatColumn(name string, timeIdx int) ([]float64, error) {
	if timeIdx < 0 || timeIdx >= len(ps.times) {
		return nil, fmt.Errorf("%w: time index %d out of range", ErrUnknownAttribute, timeIdx)
	}
	switch name {
	case AttrArrivalTime:
		return ps.arrival[timeIdx], nil
	case AttrLocationInLink:
		return ps.location[timeIdx], nil
	case AttrDiameter:
		return ps.diameter[timeIdx], nil
	case AttrVolume:
		return ps.volume[timeIdx], nil
	case AttrAbrasionRate:
		return ps.abrasion, nil
	case AttrDensity:
		return ps.density, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
}

// SumVolumeAtLink reduces parcel volume at timeIdx into one sum per
// link, counting only parcels for which filter is true. Links with
// no matching parcels sum to zero. The filter may be shorter than
// the slice when parcels were added after it was built; missing
// entries count as false.
func (ps *ParcelStore) SumVolumeAtLink(timeIdx, numLinks int, filter []bool) []float64 {
	out := make([]float64, numLinks)
	links := ps.currentLink[timeIdx]
	vols := ps.volume[timeIdx]
	for p, link := range links {
		if p >= len(filter) || !filter[p] {
			continue
		}
		if link < 0 || link >= numLinks {
			continue
		}
		if !math.IsNaN(vols[p]) {
			out[link] += vols[p]
		}
	}
	return out
}
