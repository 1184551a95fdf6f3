// Package engine executes EARN and SPEND operations against the ledger.
//
// An operation moves through RECEIVED, RESOLVING_RULES, COMPUTING_DELTA,
// APPENDING and ends in COMMITTED or REJECTED. Concurrent calls with the same
// idempotency key share one execution; calls for one account are serialized
// in-process by a keylock and across processes by the ledger's version check.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/keylock"
	"github.com/chris/loyalty-ledger/pkg/metrics"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/notify"
	"github.com/chris/loyalty-ledger/pkg/storage"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRetention   = 7 * 24 * time.Hour
	DefaultMaxAttempts = 5
	publishTimeout     = 5 * time.Second
	// executeTimeout bounds a shared execution once it is detached from the leader's context.
	executeTimeout = 30 * time.Second
)

// State is a step of the operation state machine.
type State string

const (
	StateReceived       State = "RECEIVED"
	StateResolvingRules State = "RESOLVING_RULES"
	StateComputingDelta State = "COMPUTING_DELTA"
	StateAppending      State = "APPENDING"
	StateCommitted      State = "COMMITTED"
	StateRejected       State = "REJECTED"
)

// Store is the storage surface the engine needs.
type Store interface {
	storage.RulesetReader
	storage.AccountStore
	storage.Ledger
	storage.OperationStore
}

// Options tunes an Engine. Zero values fall back to defaults.
type Options struct {
	Retention   time.Duration
	MaxAttempts int
	Publisher   notify.Publisher
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Clock       func() time.Time
}

type Engine struct {
	store       Store
	locks       *keylock.Arena
	inflight    singleflight.Group
	publisher   notify.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
	retention   time.Duration
	maxAttempts int
}

func New(store Store, opts Options) *Engine {
	e := &Engine{
		store:       store,
		locks:       keylock.New(),
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		now:         opts.Clock,
		retention:   opts.Retention,
		maxAttempts: opts.MaxAttempts,
	}
	if e.publisher == nil {
		e.publisher = &notify.NoOpPublisher{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "engine")
	if e.now == nil {
		e.now = time.Now
	}
	if e.retention <= 0 {
		e.retention = DefaultRetention
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = DefaultMaxAttempts
	}
	return e
}

// Execute runs one operation. A repeated OperationID returns the stored
// result with IdempotentReplay set and appends nothing.
func (e *Engine) Execute(ctx context.Context, req models.OperationRequest) (*models.OperationResult, error) {
	start := time.Now()
	if err := validateRequest(&req); err != nil {
		e.finish(req.OpType, "rejected", start)
		return nil, err
	}

	leader := false
	key := req.AccountID + "/" + req.OperationID
	v, err, shared := e.inflight.Do(key, func() (interface{}, error) {
		leader = true
		// Followers wait on this execution, so the leader cancelling must not abort it.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), executeTimeout)
		defer cancel()
		return e.execute(runCtx, req)
	})
	if err != nil {
		if leader {
			e.finish(req.OpType, outcome(err), start)
		}
		return nil, err
	}

	res := *v.(*models.OperationResult)
	if shared && !leader {
		res.IdempotentReplay = true
	}
	if res.IdempotentReplay {
		e.metrics.IdempotentReplay()
		e.finish(req.OpType, "replayed", start)
	} else if leader {
		e.finish(req.OpType, "committed", start)
	}
	return &res, nil
}

func (e *Engine) execute(ctx context.Context, req models.OperationRequest) (*models.OperationResult, error) {
	log := e.logger.With("account_id", req.AccountID, "operation_id", req.OperationID, "op_type", req.OpType)
	e.transition(ctx, log, StateReceived)

	if res, err := e.replay(ctx, req); res != nil || err != nil {
		if err != nil {
			e.reject(ctx, log, err)
		}
		return res, err
	}

	unlock, err := e.locks.Lock(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire account lock: %w", err)
	}
	defer unlock()

	// A caller that waited on the lock may find its key committed meanwhile.
	if res, err := e.replay(ctx, req); res != nil || err != nil {
		return res, err
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		res, err := e.attempt(ctx, log, req)
		switch {
		case err == nil:
			e.transition(ctx, log, StateCommitted, "event_id", res.Event.ID, "balance", res.Balance.BalancePoints)
			e.publish(ctx, log, res)
			return res, nil
		case errors.Is(err, storage.ErrVersionConflict):
			e.metrics.AppendRetry()
			log.Log(ctx, slog.LevelDebug, "account changed concurrently, retrying", "attempt", attempt)
			continue
		case errors.Is(err, storage.ErrDuplicateOperation):
			res, rerr := e.replay(ctx, req)
			if rerr == nil && res == nil {
				rerr = fmt.Errorf("operation %s reported as duplicate but not found", req.OperationID)
			}
			return res, rerr
		default:
			e.reject(ctx, log, err)
			return nil, err
		}
	}

	err = errs.Conflict(errs.CodeConcurrentUpdate, "account %s kept changing, gave up after %d attempts", req.AccountID, e.maxAttempts)
	e.reject(ctx, log, err)
	return nil, err
}

// attempt performs one read-resolve-compute-append cycle against a fresh account snapshot.
func (e *Engine) attempt(ctx context.Context, log *slog.Logger, req models.OperationRequest) (*models.OperationResult, error) {
	acc, err := e.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, mapAccountErr(req.AccountID, err)
	}
	ts := e.now().UTC()

	e.transition(ctx, log, StateResolvingRules, "total_spend", acc.TotalSpendMoney.String())
	rs, err := e.store.RulesetAt(ctx, ts)
	if err != nil && !errors.Is(err, storage.ErrRulesetNotFound) {
		return nil, fmt.Errorf("failed to load current ruleset: %w", err)
	}
	if rs == nil && req.OpType == models.EARN {
		return nil, errs.NotFound(errs.CodeRulesetNotFound, "no ruleset is effective at %s", ts.Format(time.RFC3339))
	}

	e.transition(ctx, log, StateComputingDelta)
	draft, err := computeDraft(acc, rs, req)
	if err != nil {
		return nil, err
	}
	draft.Ts = ts
	draft.ExpiresAt = ts.Add(e.retention)

	e.transition(ctx, log, StateAppending, "delta_points", draft.DeltaPoints, "expected_version", draft.ExpectedVersion)
	res, err := e.store.Append(ctx, draft)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInsufficientBalance):
			return nil, errs.InsufficientBalance("balance %d is not enough to spend %d points", acc.BalancePoints, -draft.DeltaPoints)
		case errors.Is(err, storage.ErrBalanceOverflow):
			return nil, errs.Validation(errs.CodeInvalidMoney, "operation would overflow balance %d or total spend %s", acc.BalancePoints, acc.TotalSpendMoney.StringFixed(2))
		case errors.Is(err, storage.ErrVersionConflict), errors.Is(err, storage.ErrDuplicateOperation):
			return nil, err
		case errors.Is(err, storage.ErrAccountNotFound):
			return nil, mapAccountErr(req.AccountID, err)
		}
		return nil, fmt.Errorf("failed to append event: %w", err)
	}
	return res, nil
}

// replay returns the stored result for the key, or (nil, nil) when there is none.
func (e *Engine) replay(ctx context.Context, req models.OperationRequest) (*models.OperationResult, error) {
	rec, err := e.store.GetOperation(ctx, req.AccountID, req.OperationID)
	if err != nil {
		if errors.Is(err, storage.ErrOperationNotFound) {
			return nil, nil
		}
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, mapAccountErr(req.AccountID, err)
		}
		return nil, fmt.Errorf("failed to read operation record: %w", err)
	}
	if rec.OpType != req.OpType {
		return nil, errs.Conflict(errs.CodeIdempotencyKeyReused, "operationId %s was already used for %s", req.OperationID, rec.OpType)
	}
	res := rec.Result
	res.IdempotentReplay = true
	return &res, nil
}

func (e *Engine) publish(ctx context.Context, log *slog.Logger, res *models.OperationResult) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.publisher.Publish(pubCtx, notify.NewBalanceUpdate(res)); err != nil {
		e.metrics.PublishFailure()
		log.Warn("failed to publish balance update", "error", err)
	}
}

func (e *Engine) transition(ctx context.Context, log *slog.Logger, s State, args ...any) {
	log.Log(ctx, slog.LevelDebug, "operation state", append([]any{"state", s}, args...)...)
}

func (e *Engine) reject(ctx context.Context, log *slog.Logger, err error) {
	level := slog.LevelDebug
	switch errs.KindOf(err) {
	case errs.KindConfiguration, errs.KindInternal:
		level = slog.LevelError
	}
	log.Log(ctx, level, "operation state", "state", StateRejected, "error", err)
}

func (e *Engine) finish(opType models.OpType, outcome string, start time.Time) {
	e.metrics.Operation(string(opType), outcome, time.Since(start))
}

func outcome(err error) string {
	switch errs.KindOf(err) {
	case errs.KindInsufficientBalance:
		return "insufficient_balance"
	case errs.KindInternal, errs.KindConfiguration:
		return "error"
	default:
		return "rejected"
	}
}

func mapAccountErr(accountID string, err error) error {
	if errors.Is(err, storage.ErrAccountNotFound) {
		return errs.NotFound(errs.CodeAccountNotFound, "account %s not found", accountID)
	}
	return fmt.Errorf("failed to load account: %w", err)
}
