// Package intercept sits in front of every outgoing read and write. It is a
// pure decision table over (connectivity × operation kind): serve from cache,
// queue for later, or forward live with cache write-through.
package intercept

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/TalWayn72/EduSphere-sub002/pkg/interfaces"
)

var log *logrus.Logger

// ErrNoCachedDataOffline is the offline read miss. It surfaces to the UI as
// an "unavailable offline" state and is not retried automatically.
var ErrNoCachedDataOffline = errors.New("intercept: no cached data available offline")

// OperationKind distinguishes reads from writes.
type OperationKind string

const (
	OpRead  OperationKind = "read"
	OpWrite OperationKind = "write"
)

// QueuedAck is the synthetic acknowledgment returned for a write queued
// while offline. It is a sentinel, not a server result; the UI proceeds
// optimistically on it.
type QueuedAck struct {
	Queued bool   `json:"queued"`
	ID     string `json:"id"`
}

// CacheOutbox is the slice of the local store the interceptor touches.
type CacheOutbox interface {
	CacheQuery(operationText string, variablesJSON, resultJSON []byte) error
	GetCachedQuery(operationText string, variablesJSON []byte) ([]byte, bool, error)
	EnqueueMutation(operationText string, variablesJSON []byte) (string, error)
}

// Config wires the interceptor.
type Config struct {
	Store        CacheOutbox
	Remote       interfaces.Executor
	Connectivity interfaces.Connectivity
	Logger       *logrus.Logger
}

// Interceptor decides per operation. It holds no mutable state; the one
// connectivity reading per call is the only input besides the operation.
type Interceptor struct {
	config Config
}

// New builds an interceptor.
func New(config Config) (*Interceptor, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	if config.Store == nil || config.Remote == nil || config.Connectivity == nil {
		return nil, fmt.Errorf("intercept: store, remote and connectivity are required")
	}
	return &Interceptor{config: config}, nil
}

// Do resolves one operation. Connectivity is read exactly once; a failing
// probe counts as offline, which is the conservative choice for a device
// that cannot even report its own link state.
func (i *Interceptor) Do(ctx context.Context, kind OperationKind, operationText string, variablesJSON []byte) ([]byte, error) {
	status, err := i.config.Connectivity.Status(ctx)
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Warn("connectivity probe failed, treating as offline")
		status = interfaces.ConnectivityStatus{Connected: false, Type: interfaces.ConnectionUnknown}
	}

	if !status.Connected {
		switch kind {
		case OpWrite:
			return i.queueWrite(operationText, variablesJSON)
		default:
			return i.serveFromCache(operationText, variablesJSON)
		}
	}

	result, err := i.config.Remote.Execute(ctx, operationText, variablesJSON)
	if err != nil {
		return nil, err
	}
	if kind == OpRead {
		// Write through so a later offline window can serve this read. A
		// cache failure degrades offline availability but must not fail the
		// live response.
		if err := i.config.Store.CacheQuery(operationText, variablesJSON, result); err != nil {
			log.WithFields(logrus.Fields{"error": err}).Warn("cache write-through failed")
		}
	}
	return result, nil
}

func (i *Interceptor) serveFromCache(operationText string, variablesJSON []byte) ([]byte, error) {
	result, found, err := i.config.Store.GetCachedQuery(operationText, variablesJSON)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoCachedDataOffline
	}
	return result, nil
}

func (i *Interceptor) queueWrite(operationText string, variablesJSON []byte) ([]byte, error) {
	id, err := i.config.Store.EnqueueMutation(operationText, variablesJSON)
	if err != nil {
		return nil, err
	}
	ack, err := json.Marshal(QueuedAck{Queued: true, ID: id})
	if err != nil {
		return nil, fmt.Errorf("serialize queued ack: %w", err)
	}
	return ack, nil
}
