// Package fetcher manages the on-disk study materials tree. Materials live
// under one root directory with one subdirectory per collection, e.g.
// notes/networks/lecture1.pdf. The fetcher lists what is present and can
// download missing documents from shared links.
package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScannedFile represents one document found under the materials root.
type ScannedFile struct {
	Collection string // subdirectory name, e.g. "networks"
	Name       string // file name within the collection
	AbsPath    string // absolute file path
}

// Manager scans the materials directory tree.
type Manager struct {
	root string
}

// NewManager creates a manager rooted at the materials directory. The
// directory is created if it does not exist.
func NewManager(root string) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve materials root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create materials root %s: %w", abs, err)
	}
	return &Manager{root: abs}, nil
}

// Root returns the absolute materials root directory.
func (m *Manager) Root() string {
	return m.root
}

// ListCollections returns the collection names present on disk, sorted.
func (m *Manager) ListCollections() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read materials root: %w", err)
	}

	var collections []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		collections = append(collections, entry.Name())
	}
	sort.Strings(collections)
	return collections, nil
}

// ListSources returns the documents in one collection, sorted by file name.
// Only recognized document types are returned.
func (m *Manager) ListSources(collection string) ([]ScannedFile, error) {
	dir := filepath.Join(m.root, collection)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", collection, err)
	}

	var files []ScannedFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !isDocument(entry.Name()) {
			continue
		}
		files = append(files, ScannedFile{
			Collection: collection,
			Name:       entry.Name(),
			AbsPath:    filepath.Join(dir, entry.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// ScanAll lists every document in every collection.
func (m *Manager) ScanAll(ctx context.Context) ([]ScannedFile, error) {
	collections, err := m.ListCollections()
	if err != nil {
		return nil, err
	}

	var all []ScannedFile
	for _, collection := range collections {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		files, err := m.ListSources(collection)
		if err != nil {
			return all, err
		}
		all = append(all, files...)
	}
	return all, nil
}

// isDocument reports whether the file name has a supported extension.
func isDocument(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".md", ".txt":
		return true
	}
	return false
}
