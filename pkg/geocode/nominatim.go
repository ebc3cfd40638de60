package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mapyard/marker-ingest/internal/resilience"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org"

// nominatimPlace is one entry of the Nominatim search response. Coordinates
// arrive as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimProvider geocodes via a Nominatim instance.
type NominatimProvider struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// NewNominatim creates a provider against the given base URL. Empty baseURL
// selects the public instance; a nil client gets a 15s-timeout default.
func NewNominatim(baseURL string, hc *http.Client, userAgent string) *NominatimProvider {
	if baseURL == "" {
		baseURL = defaultNominatimURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &NominatimProvider{baseURL: baseURL, httpClient: hc, userAgent: userAgent}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Lookup implements Provider.
func (p *NominatimProvider) Lookup(ctx context.Context, query string) ([]Point, error) {
	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}

	reqURL := p.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	// Nominatim's usage policy rejects anonymous clients.
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	points := make([]Point, 0, len(places))
	for _, place := range places {
		lat, err := strconv.ParseFloat(place.Lat, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: nominatim parse lat %q", place.Lat)
		}
		lng, err := strconv.ParseFloat(place.Lon, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: nominatim parse lon %q", place.Lon)
		}
		points = append(points, Point{Lat: lat, Lng: lng})
	}
	return points, nil
}
