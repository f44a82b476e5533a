// Package syncer drains the pending-write outbox whenever connectivity
// returns, a background wake fires, or a manual sync is requested. All
// triggers funnel into the single idempotent RunSync entry point.
package syncer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TalWayn72/EduSphere-sub002/pkg/interfaces"
	"github.com/TalWayn72/EduSphere-sub002/pkg/model"
)

var log *logrus.Logger

// DefaultPruneAge is the routine cache maintenance cutoff run after each
// sync batch.
const DefaultPruneAge = 7 * 24 * time.Hour

// Outbox is the slice of the local store the sync engine drains.
type Outbox interface {
	ListPending() ([]model.PendingMutationRecord, error)
	MarkMutation(id string, status model.MutationStatus) error
	PruneCacheOlderThan(maxAge time.Duration) (int, error)
}

// FailurePolicy decides what happens to a record whose replay failed. The
// engine marks the record with whatever status the policy returns and moves
// on; it never retries within the same run.
type FailurePolicy interface {
	OnReplayFailure(rec model.PendingMutationRecord, err error) model.MutationStatus
}

// RetainFailed is the default policy: a failed record is marked failed,
// retained, and never retried by this engine. Recovery (manual retry,
// re-enqueue, discard) is the surrounding application's decision.
type RetainFailed struct{}

func (RetainFailed) OnReplayFailure(model.PendingMutationRecord, error) model.MutationStatus {
	return model.MutationFailed
}

// RetryOnNextSync is an alternative policy that leaves failed records
// pending so the next sync pass picks them up again.
type RetryOnNextSync struct{}

func (RetryOnNextSync) OnReplayFailure(model.PendingMutationRecord, error) model.MutationStatus {
	return model.MutationPending
}

// Config wires the sync engine.
type Config struct {
	Outbox Outbox
	Remote interfaces.Executor
	// PruneAge is the cache maintenance cutoff. Defaults to seven days.
	PruneAge time.Duration
	// Policy handles replay failures. Defaults to RetainFailed.
	Policy FailurePolicy
	Logger *logrus.Logger
}

// Result summarizes one sync run.
type Result struct {
	// Skipped reports that another run was already in flight and this
	// trigger was dropped.
	Skipped   bool
	Attempted int
	Synced    int
	Failed    int
	Pruned    int
}

// Engine replays the outbox in FIFO order. The syncing flag is the sole
// guard against overlapping triggers: a trigger arriving mid-run is dropped,
// not queued, and the next natural trigger picks up remaining work.
type Engine struct {
	config  Config
	syncing atomic.Bool
}

// New builds a sync engine.
func New(config Config) (*Engine, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	if config.Outbox == nil || config.Remote == nil {
		return nil, fmt.Errorf("syncer: outbox and remote are required")
	}
	if config.PruneAge <= 0 {
		config.PruneAge = DefaultPruneAge
	}
	if config.Policy == nil {
		config.Policy = RetainFailed{}
	}
	return &Engine{config: config}, nil
}

// RunSync drains the outbox once. Records replay strictly oldest-first; one
// record's failure marks it per the failure policy and never aborts the
// batch. After the batch, stale cache entries are pruned as routine
// maintenance.
func (e *Engine) RunSync(ctx context.Context) (Result, error) {
	if !e.syncing.CompareAndSwap(false, true) {
		log.Debug("sync already running, trigger dropped")
		return Result{Skipped: true}, nil
	}
	defer e.syncing.Store(false)

	pending, err := e.config.Outbox.ListPending()
	if err != nil {
		return Result{}, fmt.Errorf("list pending mutations: %w", err)
	}

	var res Result
	for _, rec := range pending {
		res.Attempted++
		_, execErr := e.config.Remote.Execute(ctx, rec.OperationText, rec.VariablesJSON)
		if execErr != nil {
			status := e.config.Policy.OnReplayFailure(rec, execErr)
			if status != model.MutationPending {
				if err := e.config.Outbox.MarkMutation(rec.ID, status); err != nil {
					return res, fmt.Errorf("mark mutation %s: %w", rec.ID, err)
				}
			}
			res.Failed++
			log.WithFields(logrus.Fields{
				"id":    rec.ID,
				"error": execErr,
			}).Warn("mutation replay failed")
			continue
		}
		if err := e.config.Outbox.MarkMutation(rec.ID, model.MutationSynced); err != nil {
			return res, fmt.Errorf("mark mutation %s: %w", rec.ID, err)
		}
		res.Synced++
	}

	pruned, err := e.config.Outbox.PruneCacheOlderThan(e.config.PruneAge)
	if err != nil {
		return res, fmt.Errorf("prune cache: %w", err)
	}
	res.Pruned = pruned

	if res.Attempted > 0 {
		log.WithFields(logrus.Fields{
			"attempted": res.Attempted,
			"synced":    res.Synced,
			"failed":    res.Failed,
		}).Info("outbox drained")
	}
	return res, nil
}

// Syncing reports whether a run is currently in flight.
func (e *Engine) Syncing() bool {
	return e.syncing.Load()
}
