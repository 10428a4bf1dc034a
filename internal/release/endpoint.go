// Package release implements the release publisher: the guarded terminal
// side-effect that uploads named artifacts to a release endpoint when the
// run's gating condition holds. The endpoint itself is an external
// collaborator behind the narrow Endpoint interface.
package release

import (
	"context"
	"errors"
)

var (
	// ErrNoArtifacts means the release globs matched nothing. A release
	// with no files is never intended, so this is a hard error.
	ErrNoArtifacts = errors.New("release matched no artifacts")

	// ErrAlreadyExists means a release with the same (name, tag) identity
	// exists and the policy forbids updating it.
	ErrAlreadyExists = errors.New("release already exists")
)

// Release is the metadata of one published release.
type Release struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Tag        string `json:"tag"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	Body       string `json:"body,omitempty"`
}

// File is one artifact attached to a release: its name on the release and
// its local source path.
type File struct {
	Name string
	Path string
}

// Endpoint is the narrow interface to the external release host. Transport
// retries are the endpoint's own concern; errors surface here only on
// exhaustion. Create and Update must be atomic from the caller's
// perspective: either the release becomes visible with all files attached
// or it does not become visible at all.
type Endpoint interface {
	// Exists reports whether a release for the tag is already visible.
	Exists(ctx context.Context, tag string) (bool, error)

	// Create publishes a new release with all files attached and returns
	// its endpoint-assigned ID.
	Create(ctx context.Context, rel Release, files []File) (string, error)

	// Update replaces the files and metadata of an existing release.
	Update(ctx context.Context, rel Release, files []File) (string, error)
}
