// Package model holds the record types shared between the store, the quota
// engine, the download manager and the sync engine.
package model

import "time"

// MutationStatus is the lifecycle state of a queued write.
type MutationStatus string

const (
	// MutationPending means the write has been recorded but not replayed.
	MutationPending MutationStatus = "pending"
	// MutationSynced means the write was replayed successfully.
	MutationSynced MutationStatus = "synced"
	// MutationFailed means replay was attempted and rejected. Failed records
	// are retained and never reprocessed automatically.
	MutationFailed MutationStatus = "failed"
)

// CachedQueryRecord is one cached read result. Fingerprint is a content hash
// over the operation text and its canonicalized variables and serves as the
// primary key; re-caching the same fingerprint overwrites in place.
type CachedQueryRecord struct {
	Fingerprint   string    `json:"fingerprint"`
	OperationText string    `json:"operationText"`
	VariablesJSON []byte    `json:"variablesJSON,omitempty"`
	ResultJSON    []byte    `json:"resultJSON"`
	StoredAt      time.Time `json:"storedAt"`
}

// PendingMutationRecord is one entry of the write outbox. ID is locally
// generated and not tied to any server entity.
type PendingMutationRecord struct {
	ID            string         `json:"id"`
	OperationText string         `json:"operationText"`
	VariablesJSON []byte         `json:"variablesJSON,omitempty"`
	EnqueuedAt    time.Time      `json:"enqueuedAt"`
	Status        MutationStatus `json:"status"`
}

// OfflineBundleRecord describes one fully downloaded content bundle. It is
// written only after every unit of the bundle has been transferred; a partial
// download never produces a record. TotalBytes is measured from the files on
// disk, never from manifest estimates.
type OfflineBundleRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	DownloadedAt time.Time `json:"downloadedAt"`
	TotalBytes   int64     `json:"totalBytes"`
	UnitCount    int       `json:"unitCount"`
}
