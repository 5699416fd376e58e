package core

import (
	"fmt"
	"math"
)

// minChannelSlope is the floor applied to recomputed channel slopes
// so later transport math never divides by zero.
const minChannelSlope = 1e-4

// sandDiameter is the grain-size threshold below which a parcel
// counts as sand for the surface sand fraction.
const sandDiameter = 0.002

// recalcChannelSlope derives a reach slope from its endpoint
// elevations. A negative slope means an upstream node sits below its
// downstream neighbour, which the model cannot represent.
func recalcChannelSlope(zUp, zDown, dx float64) (float64, error) {
	slope := (zUp - zDown) / dx
	if slope < 0 {
		return 0, fmt.Errorf("%w: channel slope %g is negative (z_up=%g z_down=%g)",
			ErrPhysicalInvariant, slope, zUp, zDown)
	}
	if slope < minChannelSlope {
		slope = minChannelSlope
	}
	return slope, nil
}

// alluviumDepth converts the sediment stored in the reach below a
// node into a depth of alluvium spread over the bed area of the
// node's adjacent reaches.
func alluviumDepth(storedVolume float64, upWidths, upLengths []float64, downWidth, downLength, porosity float64) (float64, error) {
	area := downWidth * downLength
	for i := range upWidths {
		area += upWidths[i] * upLengths[i]
	}
	depth := 2 * storedVolume / area / (1 - porosity)
	if depth < 0 {
		return 0, fmt.Errorf("%w: alluvium depth %g is negative", ErrPhysicalInvariant, depth)
	}
	return depth, nil
}

// referenceShearStress is the reference Shields stress of the bed
// surface, reduced by its sand content, after Wilcock and Crowe
// (2003).
func referenceShearStress(fluidDensity, r, g, meanActiveDiameter, sandFraction float64) (float64, error) {
	taursg := fluidDensity * r * g * meanActiveDiameter *
		(0.021 + 0.015*math.Exp(-20.0*sandFraction))
	if taursg < 0 {
		return 0, fmt.Errorf("%w: reference Shields stress %g is negative", ErrPhysicalInvariant, taursg)
	}
	return taursg, nil
}

// volumePostAbrasion shrinks a parcel by Sternberg exponential
// abrasion over the distance it traveled this step.
func volumePostAbrasion(startingVolume, travelDistance, abrasionRate float64) (float64, error) {
	volume := startingVolume * math.Exp(travelDistance*(-abrasionRate))
	if volume > startingVolume {
		return 0, fmt.Errorf("%w: parcel volume grew from %g to %g under abrasion",
			ErrPhysicalInvariant, startingVolume, volume)
	}
	return volume, nil
}

// diameterPostAbrasion rescales grain diameter by the cube root of
// the volume ratio.
func diameterPostAbrasion(startingDiameter, preVolume, postVolume float64) float64 {
	return startingDiameter * math.Cbrt(postVolume/preVolume)
}
