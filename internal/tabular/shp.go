package tabular

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mapyard/marker-ingest/internal/model"
)

// Synthetic column names for the shapefile geometry so the standard column
// mapping applies to .shp sources.
const (
	shpLngColumn = "lng"
	shpLatColumn = "lat"
)

// readSHP reads a point shapefile. DBF attributes become columns and each
// point's X/Y surfaces as lng/lat. Non-point geometry is rejected.
func readSHP(path string) (*Table, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shp: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	table := &Table{Columns: append(append([]string{}, names...), shpLngColumn, shpLatColumn)}
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()
		if shape == nil {
			skipped++
			continue
		}

		var x, y float64
		switch pt := shape.(type) {
		case *shp.Point:
			x, y = pt.X, pt.Y
		case *shp.PointZ:
			x, y = pt.X, pt.Y
		case *shp.PointM:
			x, y = pt.X, pt.Y
		default:
			return nil, eris.Errorf("shp: only point shapefiles are supported, got %T", shape)
		}

		raw := make(model.RawRow, len(names)+2)
		for i, name := range names {
			val := strings.TrimRight(reader.Attribute(i), "\x00")
			raw[name] = strings.TrimSpace(val)
		}
		raw[shpLngColumn] = strconv.FormatFloat(x, 'f', -1, 64)
		raw[shpLatColumn] = strconv.FormatFloat(y, 'f', -1, 64)
		table.Rows = append(table.Rows, raw)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shp: read %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("shp: skipped null geometries",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return table, nil
}
