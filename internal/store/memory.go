package store

import (
	"context"
	"errors"
	"sync"
)

var ErrNotLoaded = errors.New("dataset not loaded")

// Memory holds the current snapshot for the session. Snapshots are never
// mutated; Reload swaps in a fresh one.
type Memory struct {
	src  Source
	mu   sync.RWMutex
	snap *Snapshot
}

func NewMemory(src Source) *Memory {
	return &Memory{src: src}
}

// Reload fetches every table from the source and replaces the snapshot.
func (m *Memory) Reload(ctx context.Context) (*Snapshot, error) {
	snap, err := Load(ctx, m.src)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()
	return snap, nil
}

// Snapshot returns the current snapshot or ErrNotLoaded.
func (m *Memory) Snapshot() (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return nil, ErrNotLoaded
	}
	return m.snap, nil
}

func (m *Memory) SourceName() string { return m.src.Name() }
