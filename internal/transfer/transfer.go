// Package transfer is the download manager: quota- and connectivity-gated,
// resumable, cancelable bulk transfers of bundle media into the local bundle
// directory.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/TalWayn72/EduSphere-sub002/pkg/interfaces"
	"github.com/TalWayn72/EduSphere-sub002/pkg/model"
)

var log *logrus.Logger

// WifiOnlyPrefKey is the preference holding the wifi-only download flag.
// The value "true" enables it; anything else disables it.
const WifiOnlyPrefKey = "downloads.wifiOnly"

var (
	// ErrAlreadyDownloading rejects a duplicate download of a bundle that
	// already has an active job handle.
	ErrAlreadyDownloading = errors.New("transfer: bundle is already downloading")
	// ErrWifiRequired rejects a download while the wifi-only preference is
	// set and the current link is not wifi.
	ErrWifiRequired = errors.New("transfer: wifi required for downloads")
)

// QuotaExceededError rejects a download whose size estimate does not fit the
// storage budget. It carries the measured usage for UI messaging.
type QuotaExceededError struct {
	UsedBytes  int64
	QuotaBytes int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("transfer: storage quota exceeded (%d of %d bytes used)", e.UsedBytes, e.QuotaBytes)
}

// BundleStore is the slice of the local store the manager persists metadata
// through.
type BundleStore interface {
	UpsertBundle(rec model.OfflineBundleRecord) error
	DeleteBundle(id string) error
	ListBundles() ([]model.OfflineBundleRecord, error)
}

// Config wires the download manager.
type Config struct {
	// BundleDir is the root directory bundle media is written under, one
	// subdirectory per bundle id.
	BundleDir    string
	Store        BundleStore
	Quota        interfaces.Quota
	Connectivity interfaces.Connectivity
	Preferences  interfaces.Preferences
	Transferrer  interfaces.Transferrer
	Logger       *logrus.Logger
}

// job tracks one active bundle download. The handle field points at the
// transfer handle of the unit currently in flight, nil between units.
type job struct {
	mu       sync.Mutex
	handle   interfaces.TransferHandle
	canceled bool
}

func (j *job) setHandle(h interfaces.TransferHandle) {
	j.mu.Lock()
	j.handle = h
	if j.canceled && h != nil {
		h.Cancel()
	}
	j.mu.Unlock()
}

func (j *job) pause() {
	j.mu.Lock()
	if j.handle != nil {
		j.handle.Pause()
	}
	j.mu.Unlock()
}

func (j *job) resume() {
	j.mu.Lock()
	if j.handle != nil {
		j.handle.Resume()
	}
	j.mu.Unlock()
}

func (j *job) cancel() {
	j.mu.Lock()
	j.canceled = true
	if j.handle != nil {
		j.handle.Cancel()
	}
	j.mu.Unlock()
}

// Manager performs bundle downloads. The jobs map is the sole concurrency
// guard against duplicate transfers: at most one entry per key, keyed by
// bundle id and by bundleId:unitId while a unit is in flight.
type Manager struct {
	config   Config
	validate *validator.Validate

	mu   sync.Mutex
	jobs map[string]*job
}

// NewManager builds a download manager.
func NewManager(config Config) (*Manager, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	if config.Store == nil || config.Quota == nil || config.Transferrer == nil {
		return nil, fmt.Errorf("transfer: store, quota and transferrer are required")
	}
	if config.Connectivity == nil || config.Preferences == nil {
		return nil, fmt.Errorf("transfer: connectivity and preferences are required")
	}
	return &Manager{
		config:   config,
		validate: validator.New(),
		jobs:     make(map[string]*job),
	}, nil
}

// DownloadBundle validates the manifest, runs the preflight gates in order
// (duplicate guard, quota, wifi-only), then transfers every unit
// sequentially and records the bundle once all units are on disk. Preflight
// failures happen before any directory is created. A unit failure aborts the
// download without writing a bundle record; partial files stay on disk and
// are overwritten by a later retry.
func (m *Manager) DownloadBundle(ctx context.Context, bundle model.Bundle, onProgress func(model.Progress)) error {
	if err := m.validate.Struct(bundle); err != nil {
		return fmt.Errorf("transfer: invalid manifest: %w", err)
	}

	j, err := m.register(bundle.ID)
	if err != nil {
		return err
	}
	defer m.unregister(bundle.ID)

	if err := m.preflight(ctx, &bundle); err != nil {
		return err
	}

	dir := filepath.Join(m.config.BundleDir, bundle.ID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}
	if err := writeManifest(dir, &bundle); err != nil {
		return err
	}

	for _, unit := range bundle.Units {
		if err := m.transferUnit(ctx, j, bundle.ID, unit, dir, onProgress); err != nil {
			return err
		}
	}

	total, err := measureUnits(dir, bundle.Units)
	if err != nil {
		return err
	}
	rec := model.OfflineBundleRecord{
		ID:           bundle.ID,
		Title:        bundle.Title,
		Description:  bundle.Description,
		DownloadedAt: time.Now().UTC(),
		TotalBytes:   total,
		UnitCount:    len(bundle.Units),
	}
	if err := m.config.Store.UpsertBundle(rec); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"bundle":     bundle.ID,
		"units":      rec.UnitCount,
		"totalBytes": rec.TotalBytes,
	}).Info("bundle downloaded")
	return nil
}

// register reserves the bundle-level job key. The check-and-set happens
// under one lock, so a concurrent duplicate call observes the reservation
// even before the first transfer starts.
func (m *Manager) register(bundleID string) (*job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, active := m.jobs[bundleID]; active {
		return nil, ErrAlreadyDownloading
	}
	j := &job{}
	m.jobs[bundleID] = j
	return j, nil
}

func (m *Manager) unregister(keys ...string) {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.jobs, key)
	}
	m.mu.Unlock()
}

func (m *Manager) preflight(ctx context.Context, bundle *model.Bundle) error {
	if estimate := bundle.EstimatedTotal(); estimate > 0 {
		room, err := m.config.Quota.HasRoomFor(estimate)
		if err != nil {
			return err
		}
		if !room {
			snap, err := m.config.Quota.Snapshot()
			if err != nil {
				return err
			}
			return &QuotaExceededError{UsedBytes: snap.AppUsedBytes, QuotaBytes: snap.QuotaBytes}
		}
	}

	wifiOnly, err := m.config.Preferences.Preference(WifiOnlyPrefKey)
	if err != nil {
		return err
	}
	if wifiOnly == "true" {
		status, err := m.config.Connectivity.Status(ctx)
		if err != nil {
			return err
		}
		if status.Type != interfaces.ConnectionWifi {
			return ErrWifiRequired
		}
	}
	return nil
}

func (m *Manager) transferUnit(ctx context.Context, j *job, bundleID string, unit model.Unit, dir string, onProgress func(model.Progress)) error {
	key := bundleID + ":" + unit.ID
	m.mu.Lock()
	m.jobs[key] = j
	m.mu.Unlock()
	defer func() {
		m.unregister(key)
		j.setHandle(nil)
	}()

	dst := filepath.Join(dir, unit.ID)
	progress := func(written, total int64) {
		if onProgress == nil {
			return
		}
		var pct float64
		if total > 0 {
			pct = float64(written) / float64(total) * 100
		}
		onProgress(model.Progress{
			BundleID:        bundleID,
			UnitID:          unit.ID,
			TotalBytes:      total,
			BytesDownloaded: written,
			Percentage:      pct,
		})
	}

	_, err := m.config.Transferrer.Transfer(ctx, unit.SourceLocator, dst, j.setHandle, progress)
	if err != nil {
		return fmt.Errorf("transfer unit %s of bundle %s: %w", unit.ID, bundleID, err)
	}
	return nil
}

// PauseTransfer pauses the active transfer for the given key. With no
// matching handle it is a silent no-op.
func (m *Manager) PauseTransfer(bundleID string, unitID ...string) {
	if j := m.lookup(bundleID, unitID...); j != nil {
		j.pause()
	}
}

// ResumeTransfer resumes a paused transfer. Silent no-op without a handle.
func (m *Manager) ResumeTransfer(bundleID string, unitID ...string) {
	if j := m.lookup(bundleID, unitID...); j != nil {
		j.resume()
	}
}

// CancelTransfer cancels the transfer and lets the download unwind through
// its error path. The transferrer discards the canceled unit's partial file,
// so a later DownloadBundle for the same bundle restarts rather than
// resumes. Silent no-op without a handle.
func (m *Manager) CancelTransfer(bundleID string, unitID ...string) {
	if j := m.lookup(bundleID, unitID...); j != nil {
		j.cancel()
	}
}

func (m *Manager) lookup(bundleID string, unitID ...string) *job {
	key := bundleID
	if len(unitID) > 0 && unitID[0] != "" {
		key = bundleID + ":" + unitID[0]
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[key]
}

// DeleteBundle removes the bundle's directory tree and metadata record. It
// is idempotent and requires no active job.
func (m *Manager) DeleteBundle(bundleID string) error {
	if err := os.RemoveAll(filepath.Join(m.config.BundleDir, bundleID)); err != nil {
		return fmt.Errorf("remove bundle dir: %w", err)
	}
	return m.config.Store.DeleteBundle(bundleID)
}

// GetBundles lists the downloaded bundle records.
func (m *Manager) GetBundles() ([]model.OfflineBundleRecord, error) {
	return m.config.Store.ListBundles()
}

// GetBundleSize measures the on-disk size of a bundle directory. A missing
// directory measures as zero.
func (m *Manager) GetBundleSize(bundleID string) (int64, error) {
	var size int64
	err := filepath.Walk(filepath.Join(m.config.BundleDir, bundleID), func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	return size, nil
}

func writeManifest(dir string, bundle *model.Bundle) error {
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// measureUnits sums the actual transferred file sizes. Estimates never feed
// into the recorded total.
func measureUnits(dir string, units []model.Unit) (int64, error) {
	var total int64
	for _, unit := range units {
		info, err := os.Stat(filepath.Join(dir, unit.ID))
		if err != nil {
			return 0, fmt.Errorf("measure unit %s: %w", unit.ID, err)
		}
		total += info.Size()
	}
	return total, nil
}
