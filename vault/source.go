package vault

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"
)

// Source is something an archive can be imported from.
type Source struct {
	Name string
	open func(ctx context.Context) (io.ReadCloser, error)
}

// Resolver opens non-file URIs (e.g. content:// handles owned by a host
// application).
type Resolver func(ctx context.Context, u *url.URL) (io.ReadCloser, error)

func FileSource(path string) Source {
	return Source{
		Name: path,
		open: func(context.Context) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// ReaderSource wraps a stream. It can be imported once.
func ReaderSource(name string, r io.Reader) Source {
	return Source{
		Name: name,
		open: func(context.Context) (io.ReadCloser, error) {
			if r == nil {
				return nil, ErrBadSource
			}
			return io.NopCloser(r), nil
		},
	}
}

// ParseSource turns a locator into a Source: file:// URIs and bare paths are
// read from disk, any other scheme goes through resolve.
func ParseSource(locator string, resolve Resolver) (Source, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return Source{}, ErrBadSource
	}
	u, err := url.Parse(locator)
	// a one-letter scheme is a windows drive, not a URI
	if err != nil || len(u.Scheme) <= 1 {
		return FileSource(locator), nil
	}
	if u.Scheme == "file" {
		if u.Path == "" {
			return Source{}, ErrBadSource
		}
		return FileSource(u.Path), nil
	}
	if resolve == nil {
		return Source{}, ErrBadSource
	}
	return Source{
		Name: locator,
		open: func(ctx context.Context) (io.ReadCloser, error) {
			return resolve(ctx, u)
		},
	}, nil
}
