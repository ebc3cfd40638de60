package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapyard/marker-ingest/internal/model"
)

var fullMapping = model.ColumnMapping{Name: "name", Address: "address", Lat: "lat", Lng: "lng"}

func TestNormalizeRow_AddressAndCoordinates(t *testing.T) {
	row := model.RawRow{
		"name":    "  Acme HQ  ",
		"address": "1 Main St, Springfield",
		"lat":     "40.7484",
		"lng":     "-73.9857",
	}

	rec, skip := normalizeRow(row, fullMapping, 3)
	require.Nil(t, skip)
	assert.Equal(t, 3, rec.RowIndex)
	assert.Equal(t, "Acme HQ", rec.Name)
	assert.Equal(t, "1 Main St, Springfield", rec.Address)
	require.True(t, rec.HasCoordinates())
	assert.Equal(t, 40.7484, *rec.Lat)
	assert.Equal(t, -73.9857, *rec.Lng)
}

func TestNormalizeRow_AddressOnly(t *testing.T) {
	row := model.RawRow{"name": "Acme HQ", "address": "1 Main St"}

	rec, skip := normalizeRow(row, fullMapping, 0)
	require.Nil(t, skip)
	assert.False(t, rec.HasCoordinates())
	assert.Equal(t, "1 Main St", rec.Address)
}

func TestNormalizeRow_CoordinatesOnlySynthesizesAddress(t *testing.T) {
	row := model.RawRow{"name": "Buoy 7", "lat": "40.5", "lng": "-73.25"}

	rec, skip := normalizeRow(row, fullMapping, 0)
	require.Nil(t, skip)
	assert.Equal(t, "40.5, -73.25", rec.Address)
	require.True(t, rec.HasCoordinates())
	assert.Equal(t, 40.5, *rec.Lat)
}

func TestNormalizeRow_MissingName(t *testing.T) {
	row := model.RawRow{"name": "   ", "address": "1 Main St", "lat": "40.7", "lng": "-73.9"}

	_, skip := normalizeRow(row, fullMapping, 5)
	require.NotNil(t, skip)
	assert.Equal(t, model.SkipMissingName, skip.Reason)
	assert.Equal(t, 5, skip.RowIndex)
}

func TestNormalizeRow_MissingAddressAndCoordinates(t *testing.T) {
	row := model.RawRow{"name": "Acme HQ"}

	_, skip := normalizeRow(row, fullMapping, 0)
	require.NotNil(t, skip)
	assert.Equal(t, model.SkipMissingAddressAndCoords, skip.Reason)
}

func TestNormalizeRow_InvalidCoordinatesRejectedDespiteAddress(t *testing.T) {
	row := model.RawRow{
		"name":    "Acme HQ",
		"address": "1 Main St",
		"lat":     "94.2",
		"lng":     "-73.9",
	}

	_, skip := normalizeRow(row, fullMapping, 0)
	require.NotNil(t, skip)
	assert.Equal(t, model.SkipInvalidCoordinates, skip.Reason)
	assert.Contains(t, skip.Detail, "out of range")
}

func TestNormalizeRow_HalfSuppliedPair(t *testing.T) {
	row := model.RawRow{"name": "Acme HQ", "lat": "40.7"}

	_, skip := normalizeRow(row, fullMapping, 0)
	require.NotNil(t, skip)
	assert.Equal(t, model.SkipInvalidCoordinates, skip.Reason)
	assert.Contains(t, skip.Detail, "half-supplied")
}

func TestNormalizeRow_AddressPastedInCoordinateColumn(t *testing.T) {
	row := model.RawRow{
		"name": "Acme HQ",
		"lat":  "123 Main Street, Springfield",
		"lng":  "-73.9",
	}

	_, skip := normalizeRow(row, fullMapping, 0)
	require.NotNil(t, skip)
	assert.Equal(t, model.SkipAddressInCoordinateColumn, skip.Reason)
}

func TestNormalizeRow_MappingWithoutCoordinateColumns(t *testing.T) {
	mapping := model.ColumnMapping{Name: "name", Address: "address"}
	row := model.RawRow{
		"name":    "Acme HQ",
		"address": "1 Main St",
		"lat":     "not a coordinate",
	}

	rec, skip := normalizeRow(row, mapping, 0)
	require.Nil(t, skip)
	assert.False(t, rec.HasCoordinates())
}

func TestNormalizeRow_BlankCoordinateCellsFallBackToAddress(t *testing.T) {
	row := model.RawRow{
		"name":    "Acme HQ",
		"address": "1 Main St",
		"lat":     "  ",
		"lng":     "",
	}

	rec, skip := normalizeRow(row, fullMapping, 0)
	require.Nil(t, skip)
	assert.False(t, rec.HasCoordinates())
	assert.Equal(t, "1 Main St", rec.Address)
}
