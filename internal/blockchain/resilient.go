package blockchain

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sony/gobreaker"

	"trustcore/internal/logger"
	"trustcore/pkg/circuitbreaker"
	"trustcore/pkg/errors"
	"trustcore/pkg/metrics"
	"trustcore/pkg/retry"
)

const retryTarget = "blockchain"

// ResilientClient retries transient failures and stops calling the gateway while the breaker is open.
type ResilientClient struct {
	next    Client
	breaker *circuitbreaker.Wrapper
	policy  retry.Policy
	logger  logger.Logger
}

// NewResilientClient wraps next. breaker may be nil.
func NewResilientClient(next Client, breaker *circuitbreaker.Wrapper, policy retry.Policy, log logger.Logger) *ResilientClient {
	return &ResilientClient{
		next:    next,
		breaker: breaker,
		policy:  policy,
		logger:  log,
	}
}

func (c *ResilientClient) AnchorBundle(ctx context.Context, root string, count int, metadata string) (string, error) {
	var txHash string

	err := retry.RetryWithCallback(ctx, c.policy, func() error {
		result, err := c.call(ctx, root, count, metadata)
		if err != nil {
			return err
		}
		txHash = result
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues("blockchain-client", retryTarget).Inc()
		c.logger.WarnwCtx(ctx, "Retrying anchor submission",
			"attempt", attempt,
			"max_attempts", c.policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err != nil {
		return "", err
	}

	return txHash, nil
}

func (c *ResilientClient) call(ctx context.Context, root string, count int, metadata string) (string, error) {
	if c.breaker == nil {
		return c.next.AnchorBundle(ctx, root, count, metadata)
	}

	result, err := c.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return c.next.AnchorBundle(ctx, root, count, metadata)
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", errors.ErrDependencyUnavailable.WithCause(err).WithDetail("dependency", "blockchain").AsFatal()
	}
	if err != nil {
		return "", err
	}

	txHash, _ := result.(string)
	return txHash, nil
}
