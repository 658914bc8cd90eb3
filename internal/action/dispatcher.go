package action

import (
	"context"
	"crypto/cipher"
	stderrors "errors"
	"net/http"
	"time"

	"trustcore/internal/blockchain"
	"trustcore/internal/constants"
	"trustcore/internal/ledger"
	"trustcore/internal/logger"
	"trustcore/internal/plugin"
	"trustcore/pkg/errors"
	"trustcore/pkg/logging"
	"trustcore/pkg/metrics"
	"trustcore/pkg/tracing"
)

const tracerName = "trustcore/action"

// ExecutionContext carries the triggering event and rule into an action.
type ExecutionContext struct {
	Event  map[string]interface{}
	RuleID string
	DryRun bool
}

type Dispatcher struct {
	blockchain blockchain.Client
	ledger     ledger.Repository
	plugins    plugin.Registry
	runtime    plugin.Runtime
	httpClient *http.Client
	userAgent  string
	aead       cipher.AEAD
	logger     logger.Logger
	now        func() time.Time
}

type Option func(*Dispatcher)

// WithBlockchain enables on-chain anchoring. Without it anchor actions always fall back.
func WithBlockchain(client blockchain.Client) Option {
	return func(d *Dispatcher) {
		d.blockchain = client
	}
}

func WithLedger(repo ledger.Repository) Option {
	return func(d *Dispatcher) {
		d.ledger = repo
	}
}

func WithPlugins(registry plugin.Registry, runtime plugin.Runtime) Option {
	return func(d *Dispatcher) {
		d.plugins = registry
		d.runtime = runtime
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.httpClient = client
	}
}

func WithUserAgent(userAgent string) Option {
	return func(d *Dispatcher) {
		if userAgent != "" {
			d.userAgent = userAgent
		}
	}
}

func WithAEAD(aead cipher.AEAD) Option {
	return func(d *Dispatcher) {
		d.aead = aead
	}
}

func NewDispatcher(log logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		httpClient: &http.Client{Timeout: constants.DefaultHTTPTimeout},
		userAgent:  constants.WebhookUserAgent,
		logger:     log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute runs one action. It never panics and never returns an error: failures are
// reported in the Result.
func (d *Dispatcher) Execute(ctx context.Context, a Action, ec ExecutionContext) (result Result) {
	start := time.Now()
	actionType := TypeName(a)

	ctx, span := tracing.StartSpan(ctx, tracerName, "action."+string(actionType))
	defer span.End()
	if ec.RuleID != "" {
		ctx = logging.WithRuleID(ctx, ec.RuleID)
	}

	defer func() {
		if r := recover(); r != nil {
			err := errors.RecoverPanic(r)
			d.logger.ErrorwCtx(ctx, "Panic recovered during action execution",
				"action_type", actionType,
				"error", err,
			)
			result = failure(actionType, err)
		}

		status := "success"
		switch {
		case !result.Success:
			status = "failure"
			tracing.RecordError(span, stderrors.New(result.Error))
		case ec.DryRun:
			status = "simulated"
		}
		metrics.ObserveAction(string(actionType), status, time.Since(start))
	}()

	if err := Validate(a); err != nil {
		return failure(actionType, err)
	}

	switch act := a.(type) {
	case *AnchorAction:
		return d.executeAnchor(ctx, act, ec)
	case *WebhookAction:
		return d.executeWebhook(ctx, act, ec)
	case *PluginEmitAction:
		return d.executePluginEmit(ctx, act, ec)
	case *LedgerAllocateAction:
		return d.executeLedgerAllocate(ctx, act, ec)
	default:
		return failure(actionType, errors.ErrUnknownType.WithDetail("message", unknownTypeMessage(string(actionType))))
	}
}

// TypeName reports the descriptor type, including unrecognised ones.
func TypeName(a Action) Type {
	if a == nil {
		return ""
	}
	return a.Type()
}
