// internal/tiles/classify.go
//
// Pixel classification of rendered map tiles.
//
// A candidate location is judged by what its tile looks like: any dark
// pixel means land is present, a band of pale blue means water, a band of
// light grey means built-up area. The RGB windows below are empirically
// tuned against the LINZ topo-raster palette. They are renderer-specific:
// pointing the fetcher at a different tile source requires re-deriving
// them, which is why classification sits behind the Classifier interface.

package tiles

import (
	"context"
	"image"

	"github.com/topoguesser/go-server/internal/geo"
)

// Palette thresholds for the LINZ topo-raster renderer. All bounds are
// exclusive, matching the historical classifier.
const (
	// Any pixel with all channels below LandDark counts as land.
	LandDark = 200

	// Water band: pale hydro blue.
	WaterRLo, WaterRHi = 200, 220
	WaterGLo, WaterGHi = 225, 238
	WaterBLo, WaterBHi = 240, 250

	// Urban band: built-up grey.
	UrbanRLo, UrbanRHi = 180, 190
	UrbanGLo, UrbanGHi = 180, 190
	UrbanBLo, UrbanBHi = 175, 187
)

// Acceptance cutoffs on band fractions.
const (
	WaterMinFraction = 0.10
	UrbanMinFraction = 0.01
)

// Outcome tags a classification so callers can tell "the tile said no"
// apart from "the tile never arrived".
type Outcome int

const (
	// OutcomeOK means the tile was fetched and decoded; the fractions are
	// meaningful.
	OutcomeOK Outcome = iota

	// OutcomeUnavailable means fetch or decode failed. The resolution loop
	// treats this the same as a rejection and moves on to the next
	// candidate (fail-open-to-retry), but tests and logs can still see the
	// difference.
	OutcomeUnavailable
)

// Classification is the per-candidate verdict. Ephemeral: computed, used
// for one accept/reject decision, discarded.
type Classification struct {
	Outcome       Outcome
	HasLand       bool
	WaterFraction float64
	UrbanFraction float64
}

// Unavailable is the fixed negative verdict used on any fetch failure.
func Unavailable() Classification {
	return Classification{Outcome: OutcomeUnavailable}
}

// Classifier produces a Classification for a coordinate at a zoom level.
// Implementations may perform network I/O and must honor ctx.
type Classifier interface {
	Classify(ctx context.Context, c geo.Coordinate, zoom int) Classification
}

// ClassifyImage scans every pixel of a decoded tile against the palette
// bands and returns the aggregate verdict.
func ClassifyImage(img image.Image) Classification {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return Unavailable()
	}

	var land bool
	var water, urban int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			r, g, bl := int(r16>>8), int(g16>>8), int(b16>>8)

			if r < LandDark && g < LandDark && bl < LandDark {
				land = true
			}
			if bl > WaterBLo && bl < WaterBHi && r > WaterRLo && r < WaterRHi && g > WaterGLo && g < WaterGHi {
				water++
			}
			if r > UrbanRLo && r < UrbanRHi && g > UrbanGLo && g < UrbanGHi && bl > UrbanBLo && bl < UrbanBHi {
				urban++
			}
		}
	}

	return Classification{
		Outcome:       OutcomeOK,
		HasLand:       land,
		WaterFraction: float64(water) / float64(total),
		UrbanFraction: float64(urban) / float64(total),
	}
}
