package layout

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfDerivesSeparateDirectories(t *testing.T) {
	l := Of("/data/databases", "/logs/transactions", "graph")

	assert.Equal(t, "graph", l.Name())
	assert.Equal(t, filepath.Join("/data/databases", "graph"), l.DatabaseDirectory())
	assert.Equal(t, filepath.Join("/logs/transactions", "graph"), l.TransactionLogsDirectory())
	assert.NotEqual(t, l.DatabaseDirectory(), l.TransactionLogsDirectory())
}

func TestOfFlatSharesOneDirectory(t *testing.T) {
	l := OfFlat("/data/graph")

	assert.Equal(t, "graph", l.Name())
	assert.Equal(t, l.DatabaseDirectory(), l.TransactionLogsDirectory())
}

func TestStoreFilesLiveInDatabaseDirectory(t *testing.T) {
	l := Of("/data/databases", "/logs/transactions", "graph")

	files := l.StoreFiles()
	require.NotEmpty(t, files)
	for _, f := range files {
		assert.Equal(t, l.DatabaseDirectory(), filepath.Dir(f))
	}
}

func TestStoreFilesIncludeIDFiles(t *testing.T) {
	l := OfFlat("/data/graph")

	all := l.StoreFiles()
	records := l.RecordStoreFiles()
	ids := l.IDFiles()

	assert.Len(t, all, len(records)+len(ids))
	for _, id := range ids {
		assert.Contains(t, all, id)
		assert.Equal(t, IDFileSuffix, filepath.Ext(id))
	}
}

func TestMetadataStoreFile(t *testing.T) {
	l := OfFlat("/data/graph")

	assert.Equal(t, filepath.Join("/data/graph", MetadataStore), l.MetadataStoreFile())
	assert.Contains(t, l.StoreFiles(), l.MetadataStoreFile())
}
