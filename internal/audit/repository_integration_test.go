//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/testinfra"
	"trustcore/pkg/errors"
)

func TestPostgresRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testinfra.Postgres(t))

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	entries := []*Entry{
		{ID: "log-1", EntityType: "rule", EntityID: "r1", Action: "rule.created", Actor: "alice", CreatedAt: base},
		{ID: "log-2", EntityType: "rule", EntityID: "r1", Action: "rule.executed", Actor: "system",
			Meta: map[string]interface{}{"matched": true}, CreatedAt: base.Add(30 * time.Minute)},
		{ID: "log-3", EntityType: "batch", EntityID: "b1", Action: "batch.anchored", Actor: "system", CreatedAt: base.Add(time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, repo.Append(ctx, e))
	}

	t.Run("get", func(t *testing.T) {
		got, err := repo.Get(ctx, "log-2")
		require.NoError(t, err)
		assert.Equal(t, "rule.executed", got.Action)
		assert.Equal(t, true, got.Meta["matched"])
		assert.True(t, got.CreatedAt.Equal(base.Add(30*time.Minute)))
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, "nope")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("window is half open", func(t *testing.T) {
		got, err := repo.ListWindow(ctx, base, base.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "log-1", got[0].ID)
		assert.Equal(t, "log-2", got[1].ID)
	})

	t.Run("duplicate id", func(t *testing.T) {
		err := repo.Append(ctx, &Entry{ID: "log-1", EntityType: "rule", EntityID: "r1", Action: "x", Actor: "a", CreatedAt: base})
		assert.True(t, errors.IsConflict(err))
	})
}

func TestRecorder_Integration(t *testing.T) {
	ctx := context.Background()
	recorder := NewRecorder(NewRepository(testinfra.Postgres(t)))

	entry, err := recorder.Record(ctx, "ledger", "evt-1", "ledger.allocated", "", nil)
	require.NoError(t, err)

	got, err := recorder.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.CreatedAt, got.CreatedAt, "millisecond precision survives storage")
	assert.NotEmpty(t, got.Actor)
}
