// Package model holds the domain types shared across the ingestion pipeline,
// the store, and the command surfaces.
package model

import "time"

// RawRow is one parsed tabular row keyed by source column name.
type RawRow map[string]string

// ColumnMapping names the source columns backing each logical marker field.
// An empty value means the field is not mapped; only the name is mandatory.
type ColumnMapping struct {
	Name    string `json:"name" yaml:"name" validate:"required"`
	Address string `json:"address" yaml:"address"`
	Lat     string `json:"lat" yaml:"lat"`
	Lng     string `json:"lng" yaml:"lng"`
}

// HasCoordinateColumns reports whether both coordinate columns are mapped.
func (m ColumnMapping) HasCoordinateColumns() bool {
	return m.Lat != "" && m.Lng != ""
}

// SkipReason classifies why a source row was rejected during normalization.
type SkipReason string

const (
	SkipMissingName               SkipReason = "missing_name"
	SkipMissingAddressAndCoords   SkipReason = "missing_address_and_coords"
	SkipInvalidCoordinates        SkipReason = "invalid_coordinates"
	SkipAddressInCoordinateColumn SkipReason = "address_in_coordinate_column"
)

// SkipRecord describes a rejected source row. Skips are bookkeeping, never
// errors: the run continues past them.
type SkipRecord struct {
	RowIndex int        `json:"row_index"`
	Reason   SkipReason `json:"reason"`
	Detail   string     `json:"detail,omitempty"`
}

// CandidateRecord is a source row that survived normalization. Lat and Lng
// are either both set or both nil.
type CandidateRecord struct {
	RowIndex int
	Name     string
	Address  string
	Lat      *float64
	Lng      *float64
}

// HasCoordinates reports whether the source row supplied its own coordinates.
func (c CandidateRecord) HasCoordinates() bool {
	return c.Lat != nil && c.Lng != nil
}

// DefaultMarkerType is assigned when neither the source nor a profile
// supplies a marker type.
const DefaultMarkerType = "other"

// Marker is a persisted map point.
type Marker struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	MapID     string    `json:"map_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Visible   bool      `json:"visible"`
	Type      string    `json:"type"`
	Tags      []string  `json:"tags,omitempty"`
	GroupHint string    `json:"group_hint,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MarkerFingerprint is the projection of an existing marker that the
// deduplicator compares candidates against.
type MarkerFingerprint struct {
	Name    string
	Address string
	Lat     *float64
	Lng     *float64
}

// AccountLimits carries the plan restrictions that gate an import.
type AccountLimits struct {
	MaxMarkersPerMap int  `json:"max_markers_per_map"`
	GeocodingAllowed bool `json:"geocoding_allowed"`
}

// Account is a provisioned customer account. Ingestion only writes these
// through EnsureAccount; plan management lives elsewhere in the product.
type Account struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	MaxMarkersPerMap int       `json:"max_markers_per_map"`
	GeocodingAllowed bool      `json:"geocoding_allowed"`
	CreatedAt        time.Time `json:"created_at"`
}
