package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mapyard/marker-ingest/internal/resilience"
)

const defaultPhotonURL = "https://photon.komoot.io"

// photonResponse is the GeoJSON feature collection returned by Photon.
// Coordinates are ordered [lng, lat].
type photonResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// PhotonProvider geocodes via a Photon instance.
type PhotonProvider struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// NewPhoton creates a provider against the given base URL. Empty baseURL
// selects the public instance; a nil client gets a 15s-timeout default.
func NewPhoton(baseURL string, hc *http.Client, userAgent string) *PhotonProvider {
	if baseURL == "" {
		baseURL = defaultPhotonURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &PhotonProvider{baseURL: baseURL, httpClient: hc, userAgent: userAgent}
}

// Name implements Provider.
func (p *PhotonProvider) Name() string { return "photon" }

// Lookup implements Provider.
func (p *PhotonProvider) Lookup(ctx context.Context, query string) ([]Point, error) {
	params := url.Values{
		"q":     {query},
		"limit": {"1"},
	}

	reqURL := p.baseURL + "/api?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: photon build request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: photon request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: photon returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: photon read body")
	}

	var photonResp photonResponse
	if err := json.Unmarshal(body, &photonResp); err != nil {
		return nil, eris.Wrap(err, "geocode: photon parse response")
	}

	var points []Point
	for _, f := range photonResp.Features {
		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		points = append(points, Point{
			Lat: f.Geometry.Coordinates[1],
			Lng: f.Geometry.Coordinates[0],
		})
	}
	return points, nil
}
