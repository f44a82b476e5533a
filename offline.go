// Package offline is the offline-first synchronization and storage-quota
// engine of the EduSphere mobile clients. It keeps reads answerable and
// writes recordable while the device has no connectivity, and keeps local
// storage inside a capacity-derived budget.
package offline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/TalWayn72/EduSphere-sub002/internal/intercept"
	"github.com/TalWayn72/EduSphere-sub002/internal/quota"
	"github.com/TalWayn72/EduSphere-sub002/internal/store"
	"github.com/TalWayn72/EduSphere-sub002/internal/syncer"
	"github.com/TalWayn72/EduSphere-sub002/internal/transfer"
	"github.com/TalWayn72/EduSphere-sub002/pkg/model"
)

// Engine is the main handle. It owns the local store and the component
// lifecycles; all collaborators are injected through Config so callers (and
// tests) construct isolated instances instead of sharing process globals.
type Engine struct {
	log    *logrus.Logger
	config Config

	store       *store.Store
	quota       *quota.Engine
	downloads   *transfer.Manager
	interceptor *intercept.Interceptor
	syncer      *syncer.Engine

	started   atomic.Bool
	startOnce sync.Once
}

// New constructs an engine handle. New performs no I/O; call Start to open
// the store and wire the components.
func New(config Config) (*Engine, error) {
	if config.DataDir == "" || config.BundleDir == "" {
		return nil, fmt.Errorf("offline: data dir and bundle dir are required")
	}
	if config.Connectivity == nil || config.Remote == nil {
		return nil, fmt.Errorf("offline: connectivity and remote executor are required")
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	return &Engine{
		log:    config.Logger,
		config: config,
	}, nil
}

// Start initializes the store and the dependent components. Start is safe to
// call multiple times; only the first call has effect.
func (e *Engine) Start(ctx context.Context) error {
	var startErr error
	e.startOnce.Do(func() {
		if err := os.MkdirAll(e.config.DataDir, 0o700); err != nil {
			startErr = fmt.Errorf("mkdir %s: %w", e.config.DataDir, err)
			return
		}

		st, err := store.New(store.StoreConfig{
			Path:   e.config.DataDir,
			Logger: e.log,
		})
		if err != nil {
			startErr = err
			return
		}
		if err := st.Init(); err != nil {
			startErr = err
			return
		}

		capacity := e.config.Capacity
		if capacity == nil {
			capacity = quota.DiskCapacity{Path: e.config.DataDir}
		}
		q, err := quota.New(quota.Config{
			BundleDir:     e.config.BundleDir,
			QuotaFraction: e.config.QuotaFraction,
			WarnFraction:  e.config.WarnFraction,
			Capacity:      capacity,
			Cache:         st,
			Bundles:       st,
			Logger:        e.log,
		})
		if err != nil {
			startErr = err
			return
		}

		transferrer := e.config.Transferrer
		if transferrer == nil {
			transferrer = &transfer.HTTPTransferrer{}
		}
		dl, err := transfer.NewManager(transfer.Config{
			BundleDir:    e.config.BundleDir,
			Store:        st,
			Quota:        q,
			Connectivity: e.config.Connectivity,
			Preferences:  st,
			Transferrer:  transferrer,
			Logger:       e.log,
		})
		if err != nil {
			startErr = err
			return
		}

		ic, err := intercept.New(intercept.Config{
			Store:        st,
			Remote:       e.config.Remote,
			Connectivity: e.config.Connectivity,
			Logger:       e.log,
		})
		if err != nil {
			startErr = err
			return
		}

		sy, err := syncer.New(syncer.Config{
			Outbox:   st,
			Remote:   e.config.Remote,
			PruneAge: e.config.CachePruneAge,
			Logger:   e.log,
		})
		if err != nil {
			startErr = err
			return
		}

		e.store = st
		e.quota = q
		e.downloads = dl
		e.interceptor = ic
		e.syncer = sy
		e.started.Store(true)
		e.log.WithFields(logrus.Fields{"dataDir": e.config.DataDir}).Info("offline engine started")
	})
	return startErr
}

// Close closes the local store. The engine cannot be restarted.
func (e *Engine) Close() error {
	if !e.started.Load() {
		return nil
	}
	e.started.Store(false)
	return e.store.Close()
}

// Do routes one outgoing operation through the offline-aware interceptor.
func (e *Engine) Do(ctx context.Context, kind intercept.OperationKind, operationText string, variablesJSON []byte) ([]byte, error) {
	if !e.started.Load() {
		return nil, store.ErrStoreUnavailable
	}
	return e.interceptor.Do(ctx, kind, operationText, variablesJSON)
}

// RunSync drains the pending-write outbox once. It is the single idempotent
// entry point for connectivity-restored events, platform background wakes
// and manual sync requests alike.
func (e *Engine) RunSync(ctx context.Context) (syncer.Result, error) {
	if !e.started.Load() {
		return syncer.Result{}, store.ErrStoreUnavailable
	}
	return e.syncer.RunSync(ctx)
}

// Snapshot recomputes the current storage snapshot.
func (e *Engine) Snapshot() (model.StorageSnapshot, error) {
	if !e.started.Load() {
		return model.StorageSnapshot{}, store.ErrStoreUnavailable
	}
	return e.quota.Snapshot()
}

// Downloads exposes the download manager.
func (e *Engine) Downloads() *transfer.Manager {
	return e.downloads
}

// Quota exposes the storage quota engine.
func (e *Engine) Quota() *quota.Engine {
	return e.quota
}

// Store exposes the local persistent store.
func (e *Engine) Store() *store.Store {
	return e.store
}
