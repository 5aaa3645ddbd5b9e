package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DirSource reads documents from a session directory.
type DirSource struct {
	root string
}

// NewDir creates a DirSource rooted at dir.
func NewDir(dir string) *DirSource {
	return &DirSource{root: filepath.Clean(dir)}
}

func newDir(location string, _ Options) (Source, error) {
	if strings.HasPrefix(location, "file://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("source: parse %q: %w", location, err)
		}
		location = u.Path
	}
	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source: %s is not a directory", location)
	}
	return NewDir(location), nil
}

// Open implements Source.
func (d *DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("source: invalid document name %q", name)
	}
	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("source: open %s: %w", name, err)
	}
	return f, nil
}

func (d *DirSource) String() string {
	return d.root
}
