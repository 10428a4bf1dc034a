package release

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// StoredRelease is one release held by the in-memory endpoint.
type StoredRelease struct {
	Release Release
	Files   []File
}

// Memory is an in-process Endpoint used by tests and dry runs.
type Memory struct {
	mu       sync.Mutex
	releases map[string]StoredRelease

	// CreateErr and UpdateErr, when set, are returned by the respective
	// calls to simulate transport exhaustion.
	CreateErr error
	UpdateErr error
}

// NewMemory returns an empty in-memory endpoint.
func NewMemory() *Memory {
	return &Memory{releases: make(map[string]StoredRelease)}
}

func (m *Memory) Exists(ctx context.Context, tag string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.releases[tag]
	return ok, nil
}

func (m *Memory) Create(ctx context.Context, rel Release, files []File) (string, error) {
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	m.releases[rel.Tag] = StoredRelease{Release: rel, Files: files}
	return rel.ID, nil
}

func (m *Memory) Update(ctx context.Context, rel Release, files []File) (string, error) {
	if m.UpdateErr != nil {
		return "", m.UpdateErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.releases[rel.Tag]
	if ok && rel.ID == "" {
		rel.ID = prev.Release.ID
	} else if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	m.releases[rel.Tag] = StoredRelease{Release: rel, Files: files}
	return rel.ID, nil
}

// Get returns the stored release for a tag, if any.
func (m *Memory) Get(tag string) (StoredRelease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel, ok := m.releases[tag]
	return rel, ok
}

var _ Endpoint = (*Memory)(nil)
