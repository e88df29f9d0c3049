// internal/geo/geo.go
//
// Coordinate math shared by the sampler, the tile pipeline and scoring.
// Responsibilities:
//   - Longitude wrapping into the canonical [-180, 180) range.
//   - Web Mercator slippy-map tile projection.
//   - Great-circle distance (haversine, R = 6371 km).
//   - Round scoring from distance.
//
// Notes:
//   - Several sampling regions sit east of the antimeridian and carry
//     longitudes above 180 (e.g. the Chatham Islands at ~183°), so every
//     path into tile math wraps first.
//   - Project performs no bounds clamping: extreme zooms or polar
//     latitudes can produce out-of-range tile indices and the caller owns
//     that case.

package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for haversine distance.
const EarthRadiusKm = 6371.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Tile addresses one raster tile in the standard {zoom}/{x}/{y} scheme.
type Tile struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Zoom int `json:"zoom"`
}

// WrapLongitude normalizes lng into [-180, 180). Idempotent: values already
// in range are returned untouched, because the +180/-180 round trip can
// lose low bits and drift an already-wrapped value.
func WrapLongitude(lng float64) float64 {
	if lng >= -180 && lng < 180 {
		return lng
	}
	return math.Mod(math.Mod(lng+180, 360)+360, 360) - 180
}

// Project converts a coordinate to its Web Mercator tile index at zoom.
// Longitude is wrapped first so upstream rounding artifacts still land on
// the correct tile.
func Project(lat, lng float64, zoom int) Tile {
	n := math.Pow(2, float64(zoom))
	wrapped := WrapLongitude(lng)
	rad := lat * math.Pi / 180
	x := math.Floor((wrapped + 180) / 360 * n)
	y := math.Floor((1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2 * n)
	return Tile{X: int(x), Y: int(y), Zoom: zoom}
}

// DistanceKm returns the great-circle distance between a and b in
// kilometers using the haversine half-angle formulation.
func DistanceKm(a, b Coordinate) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// RoundScore maps a guess distance in kilometers to the per-round score:
//
//	max(0, round(100 - 40*(ln(d+1) - 5)))
//
// There is deliberately no upper clamp: a perfect guess scores 300 and
// the UI labels the band "/300". Monotonically non-increasing in d.
func RoundScore(distanceKm float64) int {
	s := math.Round(100 - 40*(math.Log(distanceKm+1)-5))
	if s < 0 {
		return 0
	}
	return int(s)
}
