package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapyard/marker-ingest/internal/resilience"
)

func TestNominatim_Lookup(t *testing.T) {
	var gotUA, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"lat":"48.8584","lon":"2.2945","display_name":"Tour Eiffel"}]`)
	}))
	defer srv.Close()

	p := NewNominatim(srv.URL, nil, "mapyard-test/1.0")
	pts, err := p.Lookup(context.Background(), "Tour Eiffel, Paris")
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.InDelta(t, 48.8584, pts[0].Lat, 1e-9)
	assert.InDelta(t, 2.2945, pts[0].Lng, 1e-9)
	assert.Equal(t, "mapyard-test/1.0", gotUA)
	assert.Equal(t, "Tour Eiffel, Paris", gotQuery)
}

func TestNominatim_NoMatchIsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	p := NewNominatim(srv.URL, nil, "test")
	pts, err := p.Lookup(context.Background(), "nowhere at all")
	require.NoError(t, err)
	assert.Empty(t, pts)
}

func TestNominatim_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewNominatim(srv.URL, nil, "test")
	_, err := p.Lookup(context.Background(), "anywhere")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestNominatim_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewNominatim(srv.URL, nil, "test")
	_, err := p.Lookup(context.Background(), "anywhere")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestNominatim_MalformedCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"lat":"not-a-number","lon":"2.2945"}]`)
	}))
	defer srv.Close()

	p := NewNominatim(srv.URL, nil, "test")
	_, err := p.Lookup(context.Background(), "anywhere")
	require.Error(t, err)
}
