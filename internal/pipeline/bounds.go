package pipeline

import (
	"github.com/twpayne/go-geom"

	"github.com/mapyard/marker-ingest/internal/model"
)

// boundsTracker accumulates the bounding box of persisted markers so the
// client can frame the map around a finished import.
type boundsTracker struct {
	bounds *geom.Bounds
	count  int
}

func newBoundsTracker() *boundsTracker {
	return &boundsTracker{bounds: geom.NewBounds(geom.XY)}
}

func (b *boundsTracker) add(lat, lng float64) {
	b.bounds.Extend(geom.NewPointFlat(geom.XY, []float64{lng, lat}))
	b.count++
}

// box returns the accumulated bounding box, or nil when no marker was added.
func (b *boundsTracker) box() *model.Bounds {
	if b.count == 0 {
		return nil
	}
	return &model.Bounds{
		MinLat: b.bounds.Min(1),
		MinLng: b.bounds.Min(0),
		MaxLat: b.bounds.Max(1),
		MaxLng: b.bounds.Max(0),
	}
}
