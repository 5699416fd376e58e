package core

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/fluvialworks/rivernet-sim/internal/logging"
)

func init() {
	RegisterTransportModel(TransportWilcockCrowe, func() TransportModel {
		return &wilcockCrowe{}
	})
}

// wilcockCrowe is the surface-based bedload transport law of Wilcock
// and Crowe (2003): a two-branch dimensionless transport function
// driven by the ratio of applied to reference shear stress, with the
// reference stress reduced by the sand content of the bed surface
// and hiding effects scaled by grain size relative to the surface
// mean.
type wilcockCrowe struct{}

func (wilcockCrowe) Name() string { return TransportWilcockCrowe }

// ComputeVelocities recomputes the active-layer surface statistics
// for every reach, broadcasts them to the resident parcels, and
// converts the dimensionless transport rate into a downstream
// virtual velocity per active parcel.
func (wilcockCrowe) ComputeVelocities(tr *Transporter) error {
	t := tr.timeIdx
	nLinks := tr.grid.NumLinks()

	links := tr.parcels.CurrentLink(t)
	diameters := tr.parcels.Diameter(t)
	volumes := tr.parcels.Volume(t)
	active := tr.parcels.Active(t)
	densities := tr.parcels.Density()
	nParcels := len(links)

	// Active sand fraction per reach, by volume.
	sandMask := make([]bool, nParcels)
	anySand := false
	for p := 0; p < nParcels; p++ {
		sandMask[p] = tr.st.activeParcel[p] && diameters[p] < sandDiameter
		anySand = anySand || sandMask[p]
	}
	volActSand := make([]float64, nLinks)
	if anySand {
		volActSand = tr.parcels.SumVolumeAtLink(t, nLinks, sandMask)
	}
	for i := 0; i < nLinks; i++ {
		if tr.bed.volActive[i] != 0 {
			tr.bed.sandFraction[i] = volActSand[i] / tr.bed.volActive[i]
		} else {
			tr.bed.sandFraction[i] = 0
		}
	}

	// Refresh the per-reach active-layer means for this step; these
	// also seed next step's layer-thickness estimate.
	dSum := make([]float64, nLinks)
	rhoSum := make([]float64, nLinks)
	vSum := make([]float64, nLinks)
	for p := 0; p < nParcels; p++ {
		link := links[p]
		if link < 0 || link >= nLinks || !tr.st.activeParcel[p] {
			continue
		}
		dSum[link] += diameters[p] * volumes[p]
		rhoSum[link] += densities[p] * volumes[p]
		vSum[link] += volumes[p]
	}
	for i := 0; i < nLinks; i++ {
		tr.bed.dMeanActive[i] = dSum[i] / vSum[i]
		if vSum[i] > 0 {
			tr.bed.rhoMeanActive[i] = rhoSum[i] / vSum[i]
		} else {
			tr.bed.rhoMeanActive[i] = math.NaN()
		}
	}

	negativePhi := 0
	for p := 0; p < nParcels; p++ {
		tr.st.velocity[p] = 0

		link := links[p]
		if link < 0 || link >= nLinks {
			continue
		}

		dMean := tr.bed.dMeanActive[link]
		r := (densities[p] - tr.fluidDensity) / tr.fluidDensity

		taursg, err := referenceShearStress(tr.fluidDensity, r, tr.g, dMean, tr.bed.sandFraction[link])
		if err != nil {
			return fmt.Errorf("parcel %d: %w", p, err)
		}

		// Hiding function: smaller grains hide behind the surface
		// mean, larger ones protrude.
		b := 0.67 / (1 + math.Exp(1.5-diameters[p]/dMean))
		taur := taursg * math.Pow(diameters[p]/dMean, b)

		tau := tr.fluidDensity * tr.g * tr.flowDepth[t][link] * tr.grid.Slope(link)
		phi := tau / taur

		var w float64
		if phi >= 1.35 {
			w = 14 * math.Pow(1-0.894/math.Sqrt(phi), 4.5)
		} else {
			// phi < 0 should not occur with valid inputs; the real
			// part of the complex power (zero for negative phi)
			// keeps such parcels immobile instead of producing a
			// NaN cascade.
			if phi < 0 {
				negativePhi++
			}
			w = 0.002 * real(cmplx.Pow(complex(phi, 0), 7.5))
		}

		if !active[p] {
			continue
		}

		frac := math.NaN()
		if tr.bed.volActive[link] != 0 {
			frac = volumes[p] / tr.bed.volActive[link]
		}

		v := w * math.Pow(tau, 1.5) * frac /
			(math.Pow(tr.fluidDensity, 1.5) * tr.g * r * tr.bed.layerThickness[link])
		if math.IsNaN(v) {
			v = 0
		}
		tr.st.velocity[p] = v
	}

	if negativePhi > 0 {
		tr.log.Debug(context.Background(), "negative shear stress ratio",
			logging.Int("time_index", t),
			logging.Int("parcels", negativePhi),
		)
	}
	return nil
}
