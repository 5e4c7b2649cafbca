// Package assets stores locally produced artifacts (fallback upscales,
// background cut-outs) and maps them to /static/ URLs.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// URLPrefix is where the HTTP layer serves stored files from.
const URLPrefix = "/static/"

type Store struct {
	dir string
}

func NewStore(dataDir string) (*Store, error) {
	dir := filepath.Join(dataDir, "assets")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir is the filesystem root for the static file server.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data under name and returns the public URL path. Name must be
// a bare file name; path separators are rejected.
func (s *Store) Save(name string, data []byte) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid asset name %q", name)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write asset %s: %w", name, err)
	}
	return URLPrefix + name, nil
}
