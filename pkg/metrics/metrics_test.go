package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestHelpers(t *testing.T) {
	ObserveRuleEvaluation("matched", true, 3*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(RuleEvaluationsTotal.WithLabelValues("matched", "true")))

	IncProofCacheLookup("lru", true)
	IncProofCacheLookup("lru", false)
	IncProofCacheLookup("lru", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(ProofCacheLookupsTotal.WithLabelValues("lru", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(ProofCacheLookupsTotal.WithLabelValues("lru", "miss")))

	SetActiveRules(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(ActiveRules))
}
