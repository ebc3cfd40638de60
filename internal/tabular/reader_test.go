package tabular

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_CSVFile(t *testing.T) {
	path := writeTempFile(t, "locations.csv", "name,address\nAcme HQ,1 Main St\nAcme Depot,9 Dock Rd\n")

	table, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "address"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Acme HQ", table.Rows[0]["name"])
	assert.Equal(t, "9 Dock Rd", table.Rows[1]["address"])
}

func TestLoad_NoHeader(t *testing.T) {
	path := writeTempFile(t, "locations.csv", "Acme HQ,1 Main St,40.75\nAcme Depot,9 Dock Rd,40.71\n")

	table, err := Load(context.Background(), path, Options{NoHeader: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"col1", "col2", "col3"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Acme HQ", table.Rows[0]["col1"])
	assert.Equal(t, "40.71", table.Rows[1]["col3"])
}

func TestLoad_BlankHeaderCellGetsPositionalName(t *testing.T) {
	path := writeTempFile(t, "locations.csv", "name,,notes\nAcme,x,y\n")

	table, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "col2", "notes"}, table.Columns)
	assert.Equal(t, "x", table.Rows[0]["col2"])
}

func TestLoad_ShortRowLeavesColumnsUnset(t *testing.T) {
	path := writeTempFile(t, "locations.csv", "name,address,notes\nAcme,1 Main St\n")

	table, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, "1 Main St", table.Rows[0]["address"])
	_, ok := table.Rows[0]["notes"]
	assert.False(t, ok)
}

func TestLoad_UnknownExtension(t *testing.T) {
	path := writeTempFile(t, "locations.pdf", "not tabular")

	_, err := Load(context.Background(), path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot determine format")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), Options{})
	require.Error(t, err)
}

func TestTableFromRows_Empty(t *testing.T) {
	table := tableFromRows(nil, false)
	assert.Empty(t, table.Columns)
	assert.Empty(t, table.Rows)
}

func TestTableFromRows_HeaderOnly(t *testing.T) {
	table := tableFromRows([][]string{{"name", "address"}}, false)
	assert.Equal(t, []string{"name", "address"}, table.Columns)
	assert.Empty(t, table.Rows)
}
