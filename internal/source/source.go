// Package source provides the upload input abstraction: a Source yields one
// readable CSV stream, whether it lives on local disk or behind an HTTP
// endpoint.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Source opens one upload for reading. Callers own the returned stream and
// must close it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)

	// Name is the upload's display name (base filename or URL), used for
	// job bookkeeping and logs.
	Name() string
}

// Local reads an upload from the local filesystem.
type Local struct{ path string }

// NewLocal returns a Source bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

func (l *Local) Name() string { return l.path }

// Open opens the file. A canceled context returns immediately without
// touching the filesystem; filesystem errors stay errors.Is-comparable
// (e.g. os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}

// ForPath picks the Source implementation for a path or URL: http:// and
// https:// become an HTTP source, everything else is a local file.
func ForPath(pathOrURL string) Source {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return NewHTTP(pathOrURL, HTTPConfig{})
	}
	return NewLocal(pathOrURL)
}
