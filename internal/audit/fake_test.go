package audit

import (
	"context"
	"sync"
	"time"

	"trustcore/pkg/errors"
)

type memoryRepository struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *memoryRepository) Append(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryRepository) Get(_ context.Context, id string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e := e
			return &e, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (m *memoryRepository) ListWindow(_ context.Context, start, end time.Time) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Entry{}
	for _, e := range m.entries {
		if !e.CreatedAt.Before(start) && e.CreatedAt.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}
