// internal/region/region.go
//
// Curated sampling regions for location selection.
//
// Responsibilities:
//   - Load the fixed region table from an environment-provided file or fall
//     back to the embedded default set.
//   - Validate bounding boxes on load.
//   - Draw seed-reproducible coordinates from the table.
//
// Sampling contract:
//   A draw consumes exactly 3 PRNG values, in order: region index, latitude,
//   longitude. Selection is uniform over the table, NOT weighted by area;
//   small regions come up as often as large ones. That is a deliberate
//   property of the historical sampler and must be preserved, because every
//   client replaying a seed has to land on the same sequence of coordinates.
//
// Environment variables:
//   REGIONS_FILE=/path/to/regions.json
//
// Initialization is run once (sync.Once), mirroring process-start loading of
// a fixed input table.

package region

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/topoguesser/go-server/assets"
	"github.com/topoguesser/go-server/internal/geo"
	"github.com/topoguesser/go-server/internal/rng"
)

// Region is an immutable geographic bounding box.
type Region struct {
	LatMin float64 `json:"latMin"`
	LatMax float64 `json:"latMax"`
	LngMin float64 `json:"lngMin"`
	LngMax float64 `json:"lngMax"`
}

// Table is the fixed set of regions a session samples from.
type Table []Region

var (
	initOnce     sync.Once
	defaultTable Table
	initialErr   error
)

// Default returns the process-wide region table, loading it on first use.
// REGIONS_FILE overrides the embedded set.
func Default() (Table, error) {
	initOnce.Do(func() {
		var raw []byte
		if path := os.Getenv("REGIONS_FILE"); path != "" {
			raw, initialErr = os.ReadFile(path)
		} else {
			raw, initialErr = assets.RegionsJSON()
		}
		if initialErr != nil {
			return
		}
		defaultTable, initialErr = Parse(raw)
	})
	return defaultTable, initialErr
}

// Parse decodes and validates a JSON region table.
func Parse(raw []byte) (Table, error) {
	var t Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse regions: %w", err)
	}
	if len(t) == 0 {
		return nil, errors.New("regions: table is empty")
	}
	for i, r := range t {
		if r.LatMin > r.LatMax || r.LngMin > r.LngMax {
			return nil, fmt.Errorf("regions: box %d inverted: %+v", i, r)
		}
	}
	return t, nil
}

// Contains reports whether c falls inside the box. Longitudes compare raw
// (unwrapped), matching how boxes east of the antimeridian are stored.
func (r Region) Contains(c geo.Coordinate) bool {
	return c.Lat >= r.LatMin && c.Lat <= r.LatMax &&
		c.Lng >= r.LngMin && c.Lng <= r.LngMax
}

// Sampler draws candidate coordinates from a table.
type Sampler struct {
	table Table
}

// NewSampler returns a Sampler over t.
func NewSampler(t Table) *Sampler {
	return &Sampler{table: t}
}

// Sample picks a region uniformly, then a latitude and longitude uniformly
// within its box. Exactly 3 draws from s, in that order.
func (sm *Sampler) Sample(s *rng.State) geo.Coordinate {
	r := sm.table[int(s.Next()*float64(len(sm.table)))]
	return geo.Coordinate{
		Lat: s.InRange(r.LatMin, r.LatMax),
		Lng: s.InRange(r.LngMin, r.LngMax),
	}
}

// Len reports the table size.
func (sm *Sampler) Len() int { return len(sm.table) }
