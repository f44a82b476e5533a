// Package interfaces defines the boundary collaborators the offline engine
// consumes. Implementations live outside the core (platform glue, network
// layer); tests substitute mocks.
package interfaces

import (
	"context"

	"github.com/TalWayn72/EduSphere-sub002/pkg/model"
)

// ConnectionType classifies the current network link.
type ConnectionType string

const (
	ConnectionWifi     ConnectionType = "wifi"
	ConnectionCellular ConnectionType = "cellular"
	ConnectionNone     ConnectionType = "none"
	ConnectionUnknown  ConnectionType = "unknown"
)

// ConnectivityStatus is a point-in-time connectivity reading.
type ConnectivityStatus struct {
	Connected bool
	Type      ConnectionType
}

// Connectivity reports the current network state. The engine polls it on
// demand, exactly once per intercepted operation; event subscription wiring
// belongs to the UI layer.
type Connectivity interface {
	Status(ctx context.Context) (ConnectivityStatus, error)
}

// Executor forwards an operation to the remote execution layer. It is a
// black box; any returned error is treated as a forward/replay failure and
// is not reinterpreted by the engine.
type Executor interface {
	Execute(ctx context.Context, operationText string, variablesJSON []byte) ([]byte, error)
}

// Capacity exposes the platform storage capacity probes.
type Capacity interface {
	TotalBytes() (uint64, error)
	FreeBytes() (uint64, error)
}

// Preferences is a persisted string key/value store. The engine uses it for
// the wifi-only download flag ("true" enables it, anything else disables it).
type Preferences interface {
	Preference(key string) (string, error)
	SetPreference(key, value string) error
}

// TransferHandle controls one in-flight resumable transfer.
type TransferHandle interface {
	Pause()
	Resume()
	Cancel()
}

// Transferrer is the resumable transfer primitive. Transfer blocks until the
// unit is fully written to dst, the context is canceled, or the transfer is
// canceled through the handle passed to started. Cancellation through the
// handle discards the partial dst so a retry starts fresh. Progress is
// reported as bytes arrive; timeouts are the primitive's own concern, the
// engine adds no timeout layer on top.
type Transferrer interface {
	Transfer(ctx context.Context, src, dst string, started func(TransferHandle), progress func(written, total int64)) (int64, error)
}

// Quota is the preflight gate consumed by the download manager.
type Quota interface {
	Snapshot() (model.StorageSnapshot, error)
	HasRoomFor(neededBytes int64) (bool, error)
}
