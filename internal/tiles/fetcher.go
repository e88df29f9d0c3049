// internal/tiles/fetcher.go
//
// HTTP tile fetching against a raster tile service.
//
// The service contract is minimal: GET {base}/{zoom}/{x}/{y}.{ext} returns
// an image payload or a non-success status. Any provider satisfying that is
// substitutable, with the caveat that the palette thresholds in classify.go
// are tuned to one renderer.
//
// Failure policy: a non-2xx status, a transport error or an undecodable
// body all produce OutcomeUnavailable rather than an error. The resolution
// loop retries with the next candidate; nothing here is fatal. Each fetch
// carries its own timeout so a hung upstream cannot stall the loop on a
// single attempt.

package tiles

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/topoguesser/go-server/internal/geo"

	_ "image/jpeg"
	_ "image/png"

	// LINZ serves WebP tiles.
	_ "golang.org/x/image/webp"
)

// Service defaults match the historical LINZ basemaps source.
const (
	DefaultBaseURL = "https://basemaps.linz.govt.nz/v1/tiles/topo-raster/WebMercatorQuad"
	DefaultExt     = "webp"
	DefaultTimeout = 10 * time.Second
)

// RasterClassifier fetches tiles over HTTP and classifies their pixels.
type RasterClassifier struct {
	BaseURL string
	APIKey  string
	Ext     string
	client  *http.Client
}

// NewRasterClassifier builds a classifier against baseURL. Empty baseURL,
// ext or timeout fall back to the LINZ defaults. apiKey may be empty for
// providers that do not require one.
func NewRasterClassifier(baseURL, apiKey, ext string, timeout time.Duration) *RasterClassifier {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if ext == "" {
		ext = DefaultExt
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RasterClassifier{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Ext:     ext,
		client:  &http.Client{Timeout: timeout},
	}
}

// URL renders the request URL for a tile.
func (rc *RasterClassifier) URL(t geo.Tile) string {
	u := fmt.Sprintf("%s/%d/%d/%d.%s", rc.BaseURL, t.Zoom, t.X, t.Y, rc.Ext)
	if rc.APIKey != "" {
		u += "?api=" + rc.APIKey
	}
	return u
}

// Classify projects the coordinate, fetches its tile and scans the pixels.
// Never returns an error: every failure mode collapses to Unavailable.
func (rc *RasterClassifier) Classify(ctx context.Context, c geo.Coordinate, zoom int) Classification {
	t := geo.Project(c.Lat, c.Lng, zoom)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rc.URL(t), nil)
	if err != nil {
		return Unavailable()
	}
	resp, err := rc.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Int("x", t.X).Int("y", t.Y).Int("zoom", t.Zoom).Msg("tile fetch failed")
		return Unavailable()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug().Int("status", resp.StatusCode).Int("x", t.X).Int("y", t.Y).Msg("tile fetch non-success")
		return Unavailable()
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		log.Debug().Err(err).Int("x", t.X).Int("y", t.Y).Msg("tile decode failed")
		return Unavailable()
	}
	return ClassifyImage(img)
}
