// Package layout describes the on-disk shape of a single database instance.
//
// A DatabaseLayout is an immutable value binding a database name to its
// database directory, its transaction-log directory (which may live under a
// separately configured root) and the enumerable set of store files that
// belong to the instance. All paths are instance-scoped and never shared
// across instances.
package layout

import (
	"path/filepath"
)

// Store file names for one database instance. Every instance owns exactly
// this set; the page cache maps them by name and treats their contents as
// opaque.
const (
	NodeStore         = "vertice.nodes.db"
	RelationshipStore = "vertice.relationships.db"
	PropertyStore     = "vertice.properties.db"
	LabelIndexStore   = "vertice.labels.db"
	SchemaStore       = "vertice.schema.db"
	MetadataStore     = "vertice.metadata.db"
)

// IDFileSuffix is appended to a store file name to form the name of its
// id-allocation file.
const IDFileSuffix = ".id"

// storeFileNames enumerates the record stores in a stable order.
var storeFileNames = []string{
	NodeStore,
	RelationshipStore,
	PropertyStore,
	LabelIndexStore,
	SchemaStore,
	MetadataStore,
}

// DatabaseLayout is an immutable description of where a database instance
// lives on disk.
type DatabaseLayout struct {
	name        string
	databaseDir string
	txLogsDir   string
}

// Of derives a layout from a databases root and a transaction-logs root.
// The database directory becomes <databasesRoot>/<name> and the
// transaction-log directory <txLogsRoot>/<name>. The two roots may be equal,
// in which case both directories coincide.
func Of(databasesRoot, txLogsRoot, name string) DatabaseLayout {
	return DatabaseLayout{
		name:        name,
		databaseDir: filepath.Join(databasesRoot, name),
		txLogsDir:   filepath.Join(txLogsRoot, name),
	}
}

// OfFlat builds a layout where store files and transaction logs share one
// directory. The database name is the directory's base name.
func OfFlat(dir string) DatabaseLayout {
	return DatabaseLayout{
		name:        filepath.Base(dir),
		databaseDir: dir,
		txLogsDir:   dir,
	}
}

// Name returns the database name.
func (l DatabaseLayout) Name() string { return l.name }

// DatabaseDirectory returns the directory holding the store files.
func (l DatabaseLayout) DatabaseDirectory() string { return l.databaseDir }

// TransactionLogsDirectory returns the directory holding the transaction
// logs. May equal DatabaseDirectory for flat layouts.
func (l DatabaseLayout) TransactionLogsDirectory() string { return l.txLogsDir }

// StoreFiles returns the absolute paths of every store file belonging to
// this instance, record stores first, then their id files.
func (l DatabaseLayout) StoreFiles() []string {
	files := make([]string, 0, 2*len(storeFileNames))
	for _, name := range storeFileNames {
		files = append(files, filepath.Join(l.databaseDir, name))
	}
	for _, name := range storeFileNames {
		files = append(files, filepath.Join(l.databaseDir, name+IDFileSuffix))
	}
	return files
}

// RecordStoreFiles returns the absolute paths of the record stores only,
// excluding id files.
func (l DatabaseLayout) RecordStoreFiles() []string {
	files := make([]string, 0, len(storeFileNames))
	for _, name := range storeFileNames {
		files = append(files, filepath.Join(l.databaseDir, name))
	}
	return files
}

// IDFiles returns the absolute paths of the id-allocation files.
func (l DatabaseLayout) IDFiles() []string {
	files := make([]string, 0, len(storeFileNames))
	for _, name := range storeFileNames {
		files = append(files, filepath.Join(l.databaseDir, name+IDFileSuffix))
	}
	return files
}

// MetadataStoreFile returns the absolute path of the metadata store, the
// file carrying the instance's logical identity.
func (l DatabaseLayout) MetadataStoreFile() string {
	return filepath.Join(l.databaseDir, MetadataStore)
}

// File returns the absolute path of a store file given its name.
func (l DatabaseLayout) File(name string) string {
	return filepath.Join(l.databaseDir, name)
}
