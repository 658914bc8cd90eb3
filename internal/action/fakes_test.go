package action

import (
	"context"
	"sync"
	"time"

	"trustcore/internal/ledger"
	"trustcore/internal/plugin"
	"trustcore/pkg/errors"
)

type fakeChain struct {
	txHash string
	err    error
	calls  []string
}

func (c *fakeChain) AnchorBundle(_ context.Context, root string, count int, metadata string) (string, error) {
	c.calls = append(c.calls, root)
	if c.err != nil {
		return "", c.err
	}
	return c.txHash, nil
}

type fakeLedger struct {
	mu          sync.Mutex
	events      map[string]*ledger.Event
	allocations []ledger.Allocation
}

func newFakeLedger(events ...ledger.Event) *fakeLedger {
	l := &fakeLedger{events: map[string]*ledger.Event{}}
	for i := range events {
		l.events[events[i].ID] = &events[i]
	}
	return l
}

func (l *fakeLedger) CreateEvent(_ context.Context, event *ledger.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[event.ID] = event
	return nil
}

func (l *fakeLedger) GetLedgerEvent(_ context.Context, id string) (*ledger.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.events[id]; ok {
		return e, nil
	}
	return nil, errors.ErrNotFound.WithDetail("message", "ledger event '"+id+"' not found")
}

func (l *fakeLedger) CreateAllocations(_ context.Context, rows []ledger.Allocation) ([]ledger.Allocation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range rows {
		rows[i].ID = "alloc-" + rows[i].Bucket
	}
	l.allocations = append(l.allocations, rows...)
	return rows, nil
}

func (l *fakeLedger) ListAllocations(_ context.Context, id string) ([]ledger.Allocation, error) {
	return l.allocations, nil
}

type fakeRegistry struct {
	plugins map[string]plugin.Plugin
}

func (r *fakeRegistry) GetPlugin(_ context.Context, id string) (*plugin.Plugin, error) {
	p, ok := r.plugins[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *fakeRegistry) Register(context.Context, *plugin.Plugin) error { return nil }

func (r *fakeRegistry) List(context.Context) ([]plugin.Plugin, error) { return nil, nil }

func (r *fakeRegistry) SetEnabled(context.Context, string, bool) error { return nil }

type fakeRuntime struct {
	events []plugin.Event
	result plugin.Result
}

func (r *fakeRuntime) EmitToPlugins(_ context.Context, plugins []plugin.Plugin, event plugin.Event) map[string]plugin.Result {
	r.events = append(r.events, event)
	out := map[string]plugin.Result{}
	for _, p := range plugins {
		out[p.ID] = r.result
	}
	return out
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
