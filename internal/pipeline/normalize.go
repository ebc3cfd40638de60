package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mapyard/marker-ingest/internal/model"
)

// normalizeRow converts one raw row into a candidate record using the
// column mapping, or a skip record explaining why the row is unusable.
//
// A row with a coordinate value that fails validation is skipped even when
// it carries a usable address; falling back to geocoding there would mask
// the data error from the uploader.
func normalizeRow(row model.RawRow, mapping model.ColumnMapping, index int) (model.CandidateRecord, *model.SkipRecord) {
	name := strings.TrimSpace(row[mapping.Name])
	address := strings.TrimSpace(row[mapping.Address])

	if name == "" {
		return model.CandidateRecord{}, &model.SkipRecord{
			RowIndex: index,
			Reason:   model.SkipMissingName,
			Detail:   "name column is empty",
		}
	}

	rec := model.CandidateRecord{
		RowIndex: index,
		Name:     name,
		Address:  address,
	}

	if mapping.HasCoordinateColumns() {
		rawLat := strings.TrimSpace(row[mapping.Lat])
		rawLng := strings.TrimSpace(row[mapping.Lng])
		if rawLat != "" || rawLng != "" {
			lat, lng, err := parseCoordinatePair(rawLat, rawLng)
			if err != nil {
				reason := model.SkipInvalidCoordinates
				if looksLikeAddress(rawLat) || looksLikeAddress(rawLng) {
					reason = model.SkipAddressInCoordinateColumn
				}
				return model.CandidateRecord{}, &model.SkipRecord{
					RowIndex: index,
					Reason:   reason,
					Detail:   err.Error(),
				}
			}
			rec.Lat = &lat
			rec.Lng = &lng
		}
	}

	if rec.Address == "" && !rec.HasCoordinates() {
		return model.CandidateRecord{}, &model.SkipRecord{
			RowIndex: index,
			Reason:   model.SkipMissingAddressAndCoords,
			Detail:   "no address and no coordinates",
		}
	}

	// Records located purely by coordinates still need an address for
	// display and fingerprinting.
	if rec.Address == "" {
		rec.Address = fmt.Sprintf("%s, %s",
			strconv.FormatFloat(*rec.Lat, 'f', -1, 64),
			strconv.FormatFloat(*rec.Lng, 'f', -1, 64),
		)
	}

	return rec, nil
}
