package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/verticedb/vertice/pkg/layout"
)

// RetainedFiles computes the set of store files a truncate must leave
// untouched: the metadata store, which carries the instance's logical
// identity, and every id file, so allocated id ranges survive the reset.
// The result is always a subset of the layout's store files.
func RetainedFiles(l layout.DatabaseLayout) map[string]struct{} {
	retained := make(map[string]struct{})
	retained[l.MetadataStoreFile()] = struct{}{}
	for _, f := range l.IDFiles() {
		retained[f] = struct{}{}
	}
	return retained
}

// DeleteDirectory removes the directory at path and everything below it.
// Deleting a directory that does not exist is not an error.
func DeleteDirectory(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("delete directory %s: %w", path, err)
	}
	return nil
}

// EnsureDirectoryExists creates the directory at path, including parents,
// when it does not exist.
func EnsureDirectoryExists(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// listFileNames returns the names of the regular files directly inside dir.
// A missing directory yields an empty list.
func listFileNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// recreateMissingFiles creates an empty file inside dir for every listed
// name that no longer exists.
func recreateMissingFiles(dir string, names []string) error {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("recreate %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
	}
	return nil
}
