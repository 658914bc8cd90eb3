package anchoring

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trustcore/internal/audit"
	"trustcore/internal/blockchain"
	"trustcore/internal/logger"
	"trustcore/internal/merkle"
	"trustcore/pkg/errors"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type memoryLogs struct {
	mu      sync.Mutex
	entries []audit.Entry
	listed  int
}

func (m *memoryLogs) add(id string, at time.Time) audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := audit.Entry{
		ID:         id,
		EntityType: "trust_rule",
		EntityID:   "rule-" + id,
		Action:     "rule.created",
		Actor:      "alice",
		Meta:       map[string]interface{}{"seq": id},
		CreatedAt:  at,
	}
	m.entries = append(m.entries, entry)
	return entry
}

func (m *memoryLogs) Get(_ context.Context, id string) (*audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			cp := e
			return &cp, nil
		}
	}
	return nil, errors.ErrNotFound.WithDetail("message", fmt.Sprintf("audit log '%s' not found", id))
}

func (m *memoryLogs) ListWindow(_ context.Context, start, end time.Time) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listed++
	out := []audit.Entry{}
	for _, e := range m.entries {
		if !e.CreatedAt.Before(start) && e.CreatedAt.Before(end) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memoryBatches struct {
	mu      sync.Mutex
	batches []*Batch
	// hideWindows makes FindBatchContaining miss, as with a gap between windows.
	hideWindows bool
}

func (m *memoryBatches) CreateBatch(_ context.Context, batch *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches {
		if b.PeriodStart.Equal(batch.PeriodStart) && b.PeriodEnd.Equal(batch.PeriodEnd) {
			return errors.ErrConflict.WithDetail("message", "duplicate window")
		}
	}
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	batch.CreatedAt = fixedNow
	batch.UpdatedAt = fixedNow
	cp := *batch
	m.batches = append(m.batches, &cp)
	return nil
}

func (m *memoryBatches) UpdateBatch(_ context.Context, id string, update BatchUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches {
		if b.ID == id && b.Status != blockchain.StatusAnchored {
			b.Status = update.Status
			b.AnchoredTxHash = update.AnchoredTxHash
			b.LastError = update.LastError
			return nil
		}
	}
	return errors.ErrConflict.WithDetail("message", fmt.Sprintf("batch '%s' does not exist or is already anchored", id))
}

func (m *memoryBatches) GetBatch(_ context.Context, id string) (*Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, errors.ErrNotFound.WithDetail("message", fmt.Sprintf("batch '%s' not found", id))
}

func (m *memoryBatches) ListBatches(_ context.Context) ([]Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Batch, 0, len(m.batches))
	for _, b := range m.batches {
		out = append(out, *b)
	}
	return out, nil
}

func (m *memoryBatches) FindBatchContaining(_ context.Context, t time.Time) (*Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hideWindows {
		return nil, nil
	}
	for _, b := range m.batches {
		if b.Contains(t) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryBatches) FindOverlapping(_ context.Context, start, end time.Time) ([]Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Batch{}
	for _, b := range m.batches {
		if b.PeriodStart.Before(end) && b.PeriodEnd.After(start) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memoryBatches) FindByRoot(_ context.Context, root merkle.Hash) (*Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches {
		if b.BatchRootHash == root {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

type anchorCall struct {
	root     string
	count    int
	metadata string
}

type fakeChain struct {
	mu     sync.Mutex
	txHash string
	err    error
	calls  []anchorCall
}

func (f *fakeChain) AnchorBundle(_ context.Context, root string, count int, metadata string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, anchorCall{root: root, count: count, metadata: metadata})
	if f.err != nil {
		return "", f.err
	}
	return f.txHash, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Batch
}

func (p *recordingPublisher) PublishBatch(_ context.Context, batch *Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *batch)
	return nil
}

type fixture struct {
	logs      *memoryLogs
	batches   *memoryBatches
	cache     *LRUProofCache
	chain     *fakeChain
	publisher *recordingPublisher
	service   *Service
}

// newFixture wires a service over in-memory stores. A nil chain leaves the blockchain unconfigured.
func newFixture(chain *fakeChain, opts ...ServiceOption) *fixture {
	f := &fixture{
		logs:      &memoryLogs{},
		batches:   &memoryBatches{},
		cache:     NewLRUProofCache(100, time.Hour),
		chain:     chain,
		publisher: &recordingPublisher{},
	}
	base := []ServiceOption{
		WithPublisher(f.publisher),
		WithClock(func() time.Time { return fixedNow }),
	}
	if chain != nil {
		base = append(base, WithBlockchain(chain))
	}
	f.service = NewService(f.logs, f.batches, f.cache, logger.NopLogger(), append(base, opts...)...)
	return f
}

// withFreshCache returns a service over the same stores with an empty proof cache.
func (f *fixture) withFreshCache(opts ...ServiceOption) *Service {
	base := []ServiceOption{WithClock(func() time.Time { return fixedNow })}
	if f.chain != nil {
		base = append(base, WithBlockchain(f.chain))
	}
	return NewService(f.logs, f.batches, NewLRUProofCache(100, time.Hour), logger.NopLogger(), append(base, opts...)...)
}

var (
	windowStart = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	windowEnd   = windowStart.Add(time.Hour)
)

func (f *fixture) seedWindow(n int) []audit.Entry {
	entries := make([]audit.Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, f.logs.add(fmt.Sprintf("log-%d", i), windowStart.Add(time.Duration(i+1)*time.Minute)))
	}
	return entries
}

type stubLock struct {
	acquired bool
	released int
	windows  [][2]time.Time
}

func (l *stubLock) Acquire(_ context.Context, start, end time.Time) (func(), bool, error) {
	l.windows = append(l.windows, [2]time.Time{start, end})
	return func() { l.released++ }, l.acquired, nil
}
