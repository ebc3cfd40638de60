// Package tabular loads location rows from CSV, XLSX, and shapefile sources,
// local or remote (HTTP/FTP), into a uniform column-keyed table.
package tabular

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mapyard/marker-ingest/internal/model"
)

// Options configures source loading.
type Options struct {
	Delimiter rune   // CSV field delimiter, default ','
	Charset   string // CSV charset label ("latin1", "windows-1251", ...), default UTF-8
	Sheet     string // XLSX sheet name, default first sheet
	NoHeader  bool   // first row is data; columns become col1..colN

	// HTTPClient overrides the shared download client, used by tests.
	HTTPClient *http.Client
}

// Table is a parsed source: ordered column names plus one RawRow per data row.
type Table struct {
	Columns []string
	Rows    []model.RawRow
}

// Load reads the source (a local path or an http/https/ftp URL) and parses it
// by extension: .csv/.txt, .xlsx, or .shp. Remote sources are downloaded to a
// temp file first.
func Load(ctx context.Context, source string, opts Options) (*Table, error) {
	local := source

	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		tmp, err := fetchHTTP(ctx, opts.HTTPClient, source)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp) //nolint:errcheck
		local = tmp
	case strings.HasPrefix(source, "ftp://"):
		tmp, err := fetchFTP(ctx, source)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp) //nolint:errcheck
		local = tmp
	}

	switch strings.ToLower(filepath.Ext(local)) {
	case ".csv", ".txt":
		f, err := os.Open(local)
		if err != nil {
			return nil, eris.Wrapf(err, "tabular: open %s", source)
		}
		defer f.Close() //nolint:errcheck

		rows, err := readCSV(ctx, f, opts)
		if err != nil {
			return nil, err
		}
		return tableFromRows(rows, opts.NoHeader), nil
	case ".xlsx":
		rows, err := readXLSX(local, opts)
		if err != nil {
			return nil, err
		}
		return tableFromRows(rows, opts.NoHeader), nil
	case ".shp":
		return readSHP(local)
	default:
		return nil, eris.Errorf("tabular: cannot determine format of %s (expected .csv, .txt, .xlsx, or .shp)", source)
	}
}

// tableFromRows assembles a Table from raw rows. With a header, the first row
// names the columns and blank header cells get positional names. Without one,
// every row is data and columns are col1..colN sized to the widest row.
func tableFromRows(rows [][]string, noHeader bool) *Table {
	if len(rows) == 0 {
		return &Table{}
	}

	var columns []string
	var data [][]string

	if noHeader {
		width := 0
		for _, row := range rows {
			if len(row) > width {
				width = len(row)
			}
		}
		columns = make([]string, width)
		for i := range columns {
			columns[i] = fmt.Sprintf("col%d", i+1)
		}
		data = rows
	} else {
		header := rows[0]
		columns = make([]string, len(header))
		for i, name := range header {
			name = strings.TrimSpace(name)
			if name == "" {
				name = fmt.Sprintf("col%d", i+1)
			}
			columns[i] = name
		}
		data = rows[1:]
	}

	table := &Table{Columns: columns, Rows: make([]model.RawRow, 0, len(data))}
	for _, row := range data {
		raw := make(model.RawRow, len(columns))
		for i, col := range columns {
			if i < len(row) {
				raw[col] = row[i]
			}
		}
		table.Rows = append(table.Rows, raw)
	}
	return table
}
