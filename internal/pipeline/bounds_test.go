package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundsTracker_EmptyReturnsNil(t *testing.T) {
	b := newBoundsTracker()
	assert.Nil(t, b.box())
}

func TestBoundsTracker_SinglePoint(t *testing.T) {
	b := newBoundsTracker()
	b.add(40.75, -73.99)

	box := b.box()
	require.NotNil(t, box)
	assert.Equal(t, 40.75, box.MinLat)
	assert.Equal(t, 40.75, box.MaxLat)
	assert.Equal(t, -73.99, box.MinLng)
	assert.Equal(t, -73.99, box.MaxLng)
}

func TestBoundsTracker_SpansPoints(t *testing.T) {
	b := newBoundsTracker()
	b.add(40.75, -73.99)
	b.add(34.05, -118.24)
	b.add(47.61, -122.33)

	box := b.box()
	require.NotNil(t, box)
	assert.Equal(t, 34.05, box.MinLat)
	assert.Equal(t, 47.61, box.MaxLat)
	assert.Equal(t, -122.33, box.MinLng)
	assert.Equal(t, -73.99, box.MaxLng)
}
