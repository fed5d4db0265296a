// Package artifact stores the files a training run produces: the run
// configuration and the trained parameters.
//
// Two backends exist: LocalStore writes to a directory and S3Store writes
// under a bucket prefix. Both commit a set of entries so that the last
// entry acts as a commit marker: it is removed first and written last, so
// readers never see a marker without the entries committed before it.
package artifact

import (
	"context"
	"fmt"
	"strings"
)

// Artifact names inside a store.
const (
	ConfigName = "config.json"
	ModelName  = "model.born"
)

// Entry is one named artifact.
type Entry struct {
	Name string
	Data []byte
}

// Store reads and atomically commits artifacts.
type Store interface {
	// Get returns the artifact's bytes. A missing artifact yields an error
	// wrapping ErrPreconditionMissing.
	Get(ctx context.Context, name string) ([]byte, error)

	// Exists reports whether the artifact is present.
	Exists(ctx context.Context, name string) (bool, error)

	// Commit writes entries in order. The last entry is the commit marker.
	// Failures wrap ErrPersistence.
	Commit(ctx context.Context, entries []Entry) error

	// Location describes where artifacts live, for logs.
	Location() string
}

// Open returns an S3Store for "s3://bucket/prefix" locations and a
// LocalStore for anything else.
func Open(ctx context.Context, location string, opts S3Options) (Store, error) {
	if rest, ok := strings.CutPrefix(location, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("invalid s3 location %q: missing bucket", location)
		}
		return NewS3Store(ctx, bucket, prefix, opts)
	}
	if location == "" {
		return nil, fmt.Errorf("artifact location is empty")
	}
	return NewLocalStore(location), nil
}
