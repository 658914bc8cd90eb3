//go:build integration

package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/action"
	"trustcore/internal/condition"
	"trustcore/internal/testinfra"
	"trustcore/pkg/errors"
)

func TestPostgresRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testinfra.Postgres(t))

	high := &Rule{
		Name: "high-score",
		Condition: condition.Tree{Root: &condition.Leaf{
			Field: "score", Operator: condition.OpGt, Value: float64(50), HasValue: true,
		}},
		Actions:  action.List{&action.AnchorAction{EventHash: "0x01"}},
		Priority: 10,
		Status:   StatusActive,
	}
	require.NoError(t, repo.CreateRule(ctx, high))

	idle := &Rule{
		Name: "idle",
		Condition: condition.Tree{Root: &condition.Leaf{
			Field: "kind", Operator: condition.OpExists,
		}},
		Status: StatusInactive,
	}
	require.NoError(t, repo.CreateRule(ctx, idle))

	t.Run("round trips condition and actions", func(t *testing.T) {
		got, err := repo.GetRule(ctx, high.ID)
		require.NoError(t, err)

		leaf, ok := got.Condition.Root.(*condition.Leaf)
		require.True(t, ok)
		assert.Equal(t, "score", leaf.Field)
		assert.Equal(t, condition.OpGt, leaf.Operator)

		require.Len(t, got.Actions, 1)
		assert.Equal(t, action.TypeAnchor, got.Actions[0].Type())
	})

	t.Run("duplicate name", func(t *testing.T) {
		err := repo.CreateRule(ctx, &Rule{Name: "high-score", Condition: high.Condition, Status: StatusActive})
		assert.True(t, errors.IsConflict(err))
	})

	t.Run("status filter", func(t *testing.T) {
		all, err := repo.ListRules(ctx, Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		active, err := repo.ListRules(ctx, Filter{Status: StatusActive})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "high-score", active[0].Name)
	})

	t.Run("status and execution bookkeeping", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, idle.ID, StatusActive))
		require.NoError(t, repo.IncrementExecution(ctx, idle.ID))
		require.NoError(t, repo.IncrementExecution(ctx, idle.ID))

		got, err := repo.GetRuleByName(ctx, "idle")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, StatusActive, got.Status)
		assert.Equal(t, int64(2), got.ExecutionCount)
		assert.NotNil(t, got.LastExecutedAt)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.GetRule(ctx, "nope")
		assert.True(t, errors.IsNotFound(err))

		got, err := repo.GetRuleByName(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)

		assert.True(t, errors.IsNotFound(repo.UpdateStatus(ctx, "nope", StatusInactive)))
	})
}
