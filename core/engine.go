package core

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/fluvialworks/rivernet-sim/internal/logging"
)

// defaultLayerThickness is the active-layer thickness assigned when
// no reach yields a finite Wong et al. (2007) estimate, which happens
// on the earliest bootstrap passes.
const defaultLayerThickness = 0.03116362

// StepRecorder receives one observation per completed step. The
// observability package provides a Prometheus-backed implementation;
// the default is a no-op.
type StepRecorder interface {
	RecordStep(elapsed time.Duration, parcelsInNetwork int, totalVolume float64)
}

type noopRecorder struct{}

func (noopRecorder) RecordStep(time.Duration, int, float64) {}

// Config carries the scalar configuration of a Transporter.
type Config struct {
	BedPorosity     float64 // void fraction of the bed, [0,1)
	Gravity         float64 // m/s^2
	FluidDensity    float64 // kg/m^3
	TransportMethod string

	Logger  logging.Logger
	Metrics StepRecorder
}

// DefaultConfig returns the standard water-and-gravel configuration.
func DefaultConfig() Config {
	return Config{
		BedPorosity:     0.3,
		Gravity:         9.81,
		FluidDensity:    1000,
		TransportMethod: TransportWilcockCrowe,
	}
}

// bedState is the per-link working state the engine carries between
// phases and, for the grain-size means, between steps. The means are
// deliberately lagged: the thickness of this step's active layer is
// computed from the grains that were active last step, which avoids
// iterating to a fixed point between layer membership and layer
// grain size.
type bedState struct {
	dMeanActive    []float64
	rhoMeanActive  []float64
	layerThickness []float64
	volTotal       []float64
	volActive      []float64
	volStored      []float64
	sandFraction   []float64
}

// stepState is per-parcel scratch rebuilt every step.
type stepState struct {
	thisStep     []bool // parcel has a record and is in-network
	activeParcel []bool // thisStep && classified active
	velocity     []float64
}

// Transporter advances sediment parcels through a river network one
// timestep at a time, updating bed elevation and channel slope from
// the sediment stored in each reach.
//
// A step either completes fully or returns an error; there is no
// rollback of the elevations, slopes, or parcel attributes already
// written when an error surfaces mid-step.
type Transporter struct {
	grid      *RiverNetwork
	parcels   *ParcelStore
	fd        *FlowDirection
	flowDepth [][]float64 // [time index][link], metres

	porosity     float64
	g            float64
	fluidDensity float64
	transport    TransportModel

	log     logging.Logger
	metrics StepRecorder

	timeIdx int
	time    float64

	// cumDistance tracks total distance traveled per parcel id, for
	// abrasion bookkeeping. Keyed by id so it survives mid-run
	// parcel additions.
	cumDistance map[int]float64

	bed bedState
	st  stepState
}

// NewTransporter validates the collaborators and configuration,
// then performs one zeroth partition/elevation/slope pass so the
// initial topography reflects the parcels already seeded.
func NewTransporter(grid *RiverNetwork, parcels *ParcelStore, fd *FlowDirection, flowDepth [][]float64, cfg Config) (*Transporter, error) {
	if grid == nil {
		return nil, fmt.Errorf("%w: nil river network", ErrConfiguration)
	}
	if parcels == nil {
		return nil, fmt.Errorf("%w: nil parcel store", ErrConfiguration)
	}
	if fd == nil {
		return nil, fmt.Errorf("%w: nil flow direction", ErrConfiguration)
	}
	if fd.grid != grid {
		return nil, fmt.Errorf("%w: flow direction was built for a different network", ErrConfiguration)
	}
	if cfg.BedPorosity < 0 || cfg.BedPorosity >= 1 {
		return nil, fmt.Errorf("%w: bed porosity %g outside [0,1)", ErrConfiguration, cfg.BedPorosity)
	}
	if cfg.Gravity <= 0 {
		return nil, fmt.Errorf("%w: gravity %g must be positive", ErrConfiguration, cfg.Gravity)
	}
	if cfg.FluidDensity <= 0 {
		return nil, fmt.Errorf("%w: fluid density %g must be positive", ErrConfiguration, cfg.FluidDensity)
	}
	for _, attr := range requiredParcelAttributes {
		if !parcels.HasAttribute(attr) {
			return nil, fmt.Errorf("%w: parcel store missing attribute %q", ErrConfiguration, attr)
		}
	}
	if len(flowDepth) == 0 {
		return nil, fmt.Errorf("%w: empty flow depth matrix", ErrConfiguration)
	}
	for t, row := range flowDepth {
		if len(row) != grid.NumLinks() {
			return nil, fmt.Errorf("%w: flow depth row %d has %d links, network has %d",
				ErrConfiguration, t, len(row), grid.NumLinks())
		}
	}
	for p, link := range parcels.CurrentLink(0) {
		if link != OutOfNetwork && (link < 0 || link >= grid.NumLinks()) {
			return nil, fmt.Errorf("%w: parcel %d starts in unknown reach %d", ErrConfiguration, p, link)
		}
	}

	transport, err := transportModelFor(cfg.TransportMethod)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logging.Noop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopRecorder{}
	}

	nLinks := grid.NumLinks()
	tr := &Transporter{
		grid:         grid,
		parcels:      parcels,
		fd:           fd,
		flowDepth:    flowDepth,
		porosity:     cfg.BedPorosity,
		g:            cfg.Gravity,
		fluidDensity: cfg.FluidDensity,
		transport:    transport,
		log:          log,
		metrics:      metrics,
		cumDistance:  make(map[int]float64),
		bed: bedState{
			dMeanActive:    nanSlice(nLinks),
			rhoMeanActive:  nanSlice(nLinks),
			layerThickness: nanSlice(nLinks),
			volTotal:       make([]float64, nLinks),
			volActive:      make([]float64, nLinks),
			volStored:      make([]float64, nLinks),
			sandFraction:   make([]float64, nLinks),
		},
	}

	// Zeroth pass: classify the seeded parcels and settle the
	// starting topography and slopes before the first step.
	tr.refreshStepMembership()
	if err := tr.partitionActiveStorage(); err != nil {
		return nil, err
	}
	if err := tr.adjustNodeElevations(); err != nil {
		return nil, err
	}
	if err := tr.updateChannelSlopes(); err != nil {
		return nil, err
	}

	return tr, nil
}

// Time reports cumulative elapsed simulated time in seconds.
func (tr *Transporter) Time() float64 { return tr.time }

// TimeIndex reports the index of the newest parcel time slice.
func (tr *Transporter) TimeIndex() int { return tr.timeIdx }

// ParcelsInNetwork counts parcels still on the network at the
// newest time slice.
func (tr *Transporter) ParcelsInNetwork() int {
	n := 0
	for _, in := range tr.st.thisStep {
		if in {
			n++
		}
	}
	return n
}

// LinkTotalVolume returns the in-network sediment volume per reach
// from the most recent step.
func (tr *Transporter) LinkTotalVolume() []float64 { return append([]float64(nil), tr.bed.volTotal...) }

// LinkActiveVolume returns the active-layer sediment volume per
// reach from the most recent step.
func (tr *Transporter) LinkActiveVolume() []float64 {
	return append([]float64(nil), tr.bed.volActive...)
}

// LinkStoredVolume returns the porosity-adjusted storage volume per
// reach from the most recent step.
func (tr *Transporter) LinkStoredVolume() []float64 {
	return append([]float64(nil), tr.bed.volStored...)
}

// LinkSandFraction returns the active-layer sand fraction per reach
// from the most recent transport pass.
func (tr *Transporter) LinkSandFraction() []float64 {
	return append([]float64(nil), tr.bed.sandFraction...)
}

// ActiveLayerThickness returns the per-reach active-layer thickness
// from the most recent step.
func (tr *Transporter) ActiveLayerThickness() []float64 {
	return append([]float64(nil), tr.bed.layerThickness...)
}

// RunOneStep advances the simulation by dt seconds: it opens a new
// parcel time slice, partitions the bed into active and storage
// layers, adjusts node elevations and channel slopes, computes
// per-parcel transport velocities, and advects the active parcels
// downstream. It returns ErrNoParcels once every parcel has left
// the network.
func (tr *Transporter) RunOneStep(dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("%w: dt %g must be positive", ErrConfiguration, dt)
	}
	if tr.timeIdx+1 >= len(tr.flowDepth) {
		return fmt.Errorf("%w: flow depth matrix has no row for time index %d",
			ErrConfiguration, tr.timeIdx+1)
	}

	start := time.Now()
	tr.time += dt
	tr.timeIdx++

	tr.parcels.AddTimeSlice(tr.time)
	tr.refreshStepMembership()

	inNetwork := tr.ParcelsInNetwork()
	if inNetwork == 0 {
		return fmt.Errorf("%w: time %g", ErrNoParcels, tr.time)
	}

	if err := tr.partitionActiveStorage(); err != nil {
		return err
	}
	if err := tr.adjustNodeElevations(); err != nil {
		return err
	}
	if err := tr.updateChannelSlopes(); err != nil {
		return err
	}
	if err := tr.transport.ComputeVelocities(tr); err != nil {
		return err
	}
	if err := tr.moveParcelsDownstream(dt); err != nil {
		return err
	}
	tr.refreshStepMembership()

	total := 0.0
	for _, v := range tr.bed.volTotal {
		total += v
	}
	tr.metrics.RecordStep(time.Since(start), tr.ParcelsInNetwork(), total)
	tr.log.Debug(context.Background(), "step complete",
		logging.Int("time_index", tr.timeIdx),
		logging.Float64("sim_time", tr.time),
		logging.Int("parcels_in_network", tr.ParcelsInNetwork()),
		logging.Float64("sediment_volume", total),
	)

	return nil
}

// refreshStepMembership resizes the per-parcel scratch to the
// current parcel count and recomputes which parcels take part in
// this step.
func (tr *Transporter) refreshStepMembership() {
	links := tr.parcels.CurrentLink(tr.timeIdx)
	n := len(links)
	tr.st.thisStep = resizeBool(tr.st.thisStep, n)
	tr.st.activeParcel = resizeBool(tr.st.activeParcel, n)
	tr.st.velocity = resizeFloat(tr.st.velocity, n)
	for p, link := range links {
		tr.st.thisStep[p] = link != OutOfNetwork
	}
}

// partitionActiveStorage computes active-layer thickness per reach,
// classifies each reach's parcels into active versus storage by the
// first-in-last-out rule, and updates the per-reach volume
// aggregates.
func (tr *Transporter) partitionActiveStorage() error {
	t := tr.timeIdx
	nLinks := tr.grid.NumLinks()

	tr.bed.volTotal = tr.parcels.SumVolumeAtLink(t, nLinks, tr.st.thisStep)

	// Until a transport pass has produced active-layer means, fall
	// back to treating every parcel in a reach as active for the
	// purposes of mean grain size and density.
	if t <= 1 {
		tr.bootstrapBedMeans()
	}

	for i := 0; i < nLinks; i++ {
		tau := tr.fluidDensity * tr.g * tr.grid.Slope(i) * tr.flowDepth[t][i]
		taustar := tau / ((tr.bed.rhoMeanActive[i] - tr.fluidDensity) * tr.g * tr.bed.dMeanActive[i])
		// Wong et al. (2007); the exponent applies to the excess
		// Shields number only.
		tr.bed.layerThickness[i] = 0.515 * tr.bed.dMeanActive[i] * 3.09 * math.Pow(taustar-0.0549, 0.56)
	}

	// Reaches with no parcels (or sub-threshold stress) produce NaN;
	// give them the mean of the finite estimates, or the fixed
	// default when nothing is finite yet.
	sum, finite := 0.0, 0
	for _, th := range tr.bed.layerThickness {
		if !math.IsNaN(th) && !math.IsInf(th, 0) {
			sum += th
			finite++
		}
	}
	if finite == 0 {
		for i := range tr.bed.layerThickness {
			tr.bed.layerThickness[i] = defaultLayerThickness
		}
	} else {
		mean := sum / float64(finite)
		for i, th := range tr.bed.layerThickness {
			if math.IsNaN(th) || math.IsInf(th, 0) {
				tr.bed.layerThickness[i] = mean
			}
		}
	}

	links := tr.parcels.CurrentLink(t)
	arrivals := tr.parcels.Arrival(t)
	volumes := tr.parcels.Volume(t)
	active := tr.parcels.Active(t)

	byLink := make([][]int, nLinks)
	for p, link := range links {
		if link >= 0 && link < nLinks {
			byLink[link] = append(byLink[link], p)
		}
	}

	for i := 0; i < nLinks; i++ {
		if tr.bed.volTotal[i] <= 0 {
			continue
		}
		capacity := tr.grid.Width(i) * tr.grid.Length(i) * tr.bed.layerThickness[i]
		classifyFILO(byLink[i], arrivals, volumes, capacity, active)
	}

	for p := range tr.st.activeParcel {
		tr.st.activeParcel[p] = tr.st.thisStep[p] && active[p]
	}

	tr.bed.volActive = tr.parcels.SumVolumeAtLink(t, nLinks, tr.st.activeParcel)
	for i := 0; i < nLinks; i++ {
		tr.bed.volStored[i] = (tr.bed.volTotal[i] - tr.bed.volActive[i]) / (1 - tr.porosity)
	}

	return nil
}

// bootstrapBedMeans computes per-reach volume-weighted mean grain
// diameter and density across every parcel currently in the reach.
func (tr *Transporter) bootstrapBedMeans() {
	t := tr.timeIdx
	nLinks := tr.grid.NumLinks()
	links := tr.parcels.CurrentLink(t)
	diam := tr.parcels.Diameter(t)
	vol := tr.parcels.Volume(t)
	rho := tr.parcels.Density()

	dSum := make([]float64, nLinks)
	rhoSum := make([]float64, nLinks)
	vSum := make([]float64, nLinks)
	for p, link := range links {
		if link < 0 || link >= nLinks {
			continue
		}
		dSum[link] += diam[p] * vol[p]
		rhoSum[link] += rho[p] * vol[p]
		vSum[link] += vol[p]
	}
	for i := 0; i < nLinks; i++ {
		// 0/0 yields NaN for empty reaches, which the thickness
		// fallback then absorbs.
		tr.bed.dMeanActive[i] = dSum[i] / vSum[i]
		tr.bed.rhoMeanActive[i] = rhoSum[i] / vSum[i]
	}
}

// classifyFILO orders a reach's parcels by descending arrival time
// and marks parcels active until their running volume exceeds the
// reach capacity; deeper (earlier-arrived) parcels become storage.
// Newer sediment overlies and mobilizes before older, buried
// sediment.
func classifyFILO(ids []int, arrivals, volumes []float64, capacity float64, active []bool) {
	order := append([]int(nil), ids...)
	sort.SliceStable(order, func(a, b int) bool {
		return arrivals[order[a]] > arrivals[order[b]]
	})
	for _, id := range ids {
		active[id] = true
	}
	cum := 0.0
	for _, id := range order {
		cum += volumes[id]
		if cum > capacity {
			active[id] = false
		}
	}
}

// adjustNodeElevations rewrites topographic elevation at every node
// with at least one contributing reach as bedrock plus the alluvium
// depth implied by the stored sediment below the node. Head nodes
// keep their elevation.
func (tr *Transporter) adjustNodeElevations() error {
	nLinks := tr.grid.NumLinks()
	for n := 0; n < tr.grid.NumNodes(); n++ {
		incoming := tr.fd.IncomingLinkAtNode(n)
		row := tr.grid.LinksAtNode(n)

		var upWidths, upLengths []float64
		for j, flag := range incoming {
			if flag == 1 && row[j] != BadIndex {
				upWidths = append(upWidths, tr.grid.Width(row[j]))
				upLengths = append(upLengths, tr.grid.Length(row[j]))
			}
		}
		if len(upWidths) == 0 {
			continue
		}

		ds := tr.fd.ReceivingLink(n)
		var dsWidth, dsLength float64
		storedIdx := ds
		if ds == BadIndex {
			// At outlets there is no receiving reach; the terminal
			// reach's store stands in and its bed area contributes
			// nothing.
			dsWidth, dsLength = 0, 0
			storedIdx = nLinks - 1
		} else {
			dsWidth = tr.grid.Width(ds)
			dsLength = tr.grid.Length(ds)
		}

		depth, err := alluviumDepth(tr.bed.volStored[storedIdx], upWidths, upLengths, dsWidth, dsLength, tr.porosity)
		if err != nil {
			return fmt.Errorf("node %d: %w", n, err)
		}
		tr.grid.SetTopographicElevation(n, tr.grid.BedrockElevation(n)+depth)
	}
	return nil
}

// updateChannelSlopes recomputes every reach's slope from its
// endpoint elevations, floor-clamped to the minimum threshold.
func (tr *Transporter) updateChannelSlopes() error {
	up := tr.fd.UpstreamNodeAtLink()
	down := tr.fd.DownstreamNodeAtLink()
	for i := 0; i < tr.grid.NumLinks(); i++ {
		slope, err := recalcChannelSlope(
			tr.grid.TopographicElevation(up[i]),
			tr.grid.TopographicElevation(down[i]),
			tr.grid.Length(i),
		)
		if err != nil {
			return fmt.Errorf("reach %d: %w", i, err)
		}
		tr.grid.SetSlope(i, slope)
	}
	return nil
}

// moveParcelsDownstream advects every in-network parcel by its
// virtual velocity times dt, walking reach boundaries as needed and
// applying abrasion over the total distance traveled. A parcel that
// would cross the terminal reach with no receiving reach leaves the
// network permanently.
func (tr *Transporter) moveParcelsDownstream(dt float64) error {
	t := tr.timeIdx
	links := tr.parcels.CurrentLink(t)
	loc := tr.parcels.Location(t)
	arrivals := tr.parcels.Arrival(t)
	volumes := tr.parcels.Volume(t)
	diameters := tr.parcels.Diameter(t)
	active := tr.parcels.Active(t)
	abrasion := tr.parcels.AbrasionRate()
	downstream := tr.fd.DownstreamNodeAtLink()

	var activeDistances []float64

	for p, cur := range links {
		if cur == OutOfNetwork {
			continue
		}

		dist := tr.st.velocity[p] * dt
		tr.cumDistance[p] += dist
		if active[p] {
			activeDistances = append(activeDistances, dist)
		}

		distToExit := tr.grid.Length(cur) * (1 - loc[p])
		distWithin := tr.grid.Length(cur) * loc[p]
		running := 0.0

		for running+distToExit <= dist {
			running += distToExit
			distWithin = 0

			next := tr.fd.ReceivingLink(downstream[cur])
			cur = next
			arrivals[p] = float64(t)

			if next == BadIndex {
				cur = OutOfNetwork
				break
			}
			distToExit = tr.grid.Length(cur)
		}

		if cur == OutOfNetwork {
			loc[p] = math.NaN()
		} else {
			resting := distWithin + dist - running
			loc[p] = resting / tr.grid.Length(cur)
		}

		newVolume, err := volumePostAbrasion(volumes[p], dist, abrasion[p])
		if err != nil {
			return fmt.Errorf("parcel %d: %w", p, err)
		}
		diameters[p] = diameterPostAbrasion(diameters[p], volumes[p], newVolume)
		volumes[p] = newVolume
		links[p] = cur
	}

	if len(activeDistances) > 0 {
		tr.log.Debug(context.Background(), "active layer advected",
			logging.Int("active_parcels", len(activeDistances)),
			logging.Float64("median_travel_distance", median(activeDistances)),
		)
	}
	return nil
}

// CumulativeDistance reports the total distance parcel p has
// traveled over the run, in metres.
func (tr *Transporter) CumulativeDistance(p int) float64 { return tr.cumDistance[p] }

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func resizeBool(s []bool, n int) []bool {
	if len(s) >= n {
		return s[:n]
	}
	return append(s, make([]bool, n-len(s))...)
}

func resizeFloat(s []float64, n int) []float64 {
	if len(s) >= n {
		return s[:n]
	}
	return append(s, make([]float64, n-len(s))...)
}
