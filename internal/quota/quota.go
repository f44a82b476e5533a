// Package quota computes app storage usage against a policy budget derived
// from the device capacity, and owns the two sanctioned eviction operations.
// There is no automatic eviction of bundles; the user chooses what to remove.
package quota

import (
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/TalWayn72/EduSphere-sub002/pkg/interfaces"
	"github.com/TalWayn72/EduSphere-sub002/pkg/model"
)

var log *logrus.Logger

// Policy defaults. The app may use at most half the device; a warning state
// starts at 80% of that budget.
const (
	DefaultQuotaFraction = 0.5
	DefaultWarnFraction  = 0.8
)

// CacheTable is the slice of the store the quota engine evicts from.
type CacheTable interface {
	Path() string
	ClearCacheTable() error
}

// BundleTable clears bundle metadata after the bundle directory is removed.
type BundleTable interface {
	ClearBundleTable() error
}

// Config wires the quota engine.
type Config struct {
	// BundleDir is the root directory of downloaded bundle media.
	BundleDir string
	// QuotaFraction of total device capacity the app may use. Defaults to 0.5.
	QuotaFraction float64
	// WarnFraction of the quota at which the warning state begins. Defaults to 0.8.
	WarnFraction float64
	Capacity     interfaces.Capacity
	Cache        CacheTable
	Bundles      BundleTable
	Logger       *logrus.Logger
}

// Engine answers warn/block decisions against the storage budget. Every
// snapshot is computed from scratch; the quota follows the current device
// capacity and must never be cached across calls.
type Engine struct {
	config Config
}

// New builds a quota engine. Capacity, Cache and Bundles are required.
func New(config Config) (*Engine, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	if config.Capacity == nil {
		return nil, fmt.Errorf("quota: capacity probe is required")
	}
	if config.Cache == nil || config.Bundles == nil {
		return nil, fmt.Errorf("quota: store tables are required")
	}
	if config.QuotaFraction <= 0 {
		config.QuotaFraction = DefaultQuotaFraction
	}
	if config.WarnFraction <= 0 {
		config.WarnFraction = DefaultWarnFraction
	}
	return &Engine{config: config}, nil
}

// Snapshot measures device capacity and app usage and derives the quota
// decision flags.
func (e *Engine) Snapshot() (model.StorageSnapshot, error) {
	total, err := e.config.Capacity.TotalBytes()
	if err != nil {
		return model.StorageSnapshot{}, fmt.Errorf("read total capacity: %w", err)
	}
	free, err := e.config.Capacity.FreeBytes()
	if err != nil {
		return model.StorageSnapshot{}, fmt.Errorf("read free capacity: %w", err)
	}
	used, err := e.appUsedBytes()
	if err != nil {
		return model.StorageSnapshot{}, err
	}

	quotaBytes := int64(math.Floor(float64(total) * e.config.QuotaFraction))
	var ratio float64
	if quotaBytes > 0 {
		ratio = float64(used) / float64(quotaBytes)
	}

	snap := model.StorageSnapshot{
		TotalDeviceBytes:   total,
		FreeDeviceBytes:    free,
		AppUsedBytes:       used,
		QuotaBytes:         quotaBytes,
		UsageRatio:         ratio,
		IsApproachingLimit: ratio >= e.config.WarnFraction,
		IsOverLimit:        ratio >= 1.0,
	}
	snap.CanGoOffline = !snap.IsOverLimit
	return snap, nil
}

// HasRoomFor is the mandatory preflight gate before any bulk transfer.
func (e *Engine) HasRoomFor(neededBytes int64) (bool, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return false, err
	}
	return snap.AppUsedBytes+neededBytes <= snap.QuotaBytes, nil
}

// ClearQueryCache drops the cached query results and returns how many bytes
// of app usage that (eventually) frees, measured as the before/after delta of
// the store's backing files.
func (e *Engine) ClearQueryCache() (int64, error) {
	before, err := dirSize(e.config.Cache.Path())
	if err != nil {
		return 0, fmt.Errorf("measure store before clear: %w", err)
	}
	if err := e.config.Cache.ClearCacheTable(); err != nil {
		return 0, err
	}
	after, err := dirSize(e.config.Cache.Path())
	if err != nil {
		return 0, fmt.Errorf("measure store after clear: %w", err)
	}
	freed := before - after
	if freed < 0 {
		freed = 0
	}
	log.WithFields(logrus.Fields{"freedBytes": freed}).Info("query cache cleared")
	return freed, nil
}

// ClearDownloads removes the bundle directory tree and all bundle metadata
// and returns the measured size of what was removed. It is idempotent:
// clearing with nothing downloaded frees zero bytes and does not fail.
func (e *Engine) ClearDownloads() (int64, error) {
	freed, err := dirSize(e.config.BundleDir)
	if err != nil {
		return 0, fmt.Errorf("measure bundle dir: %w", err)
	}
	if err := os.RemoveAll(e.config.BundleDir); err != nil {
		return 0, fmt.Errorf("remove bundle dir: %w", err)
	}
	if err := e.config.Bundles.ClearBundleTable(); err != nil {
		return 0, err
	}
	log.WithFields(logrus.Fields{"freedBytes": freed}).Info("downloads cleared")
	return freed, nil
}

func (e *Engine) appUsedBytes() (int64, error) {
	bundles, err := dirSize(e.config.BundleDir)
	if err != nil {
		return 0, fmt.Errorf("measure bundle dir: %w", err)
	}
	store, err := dirSize(e.config.Cache.Path())
	if err != nil {
		return 0, fmt.Errorf("measure store dir: %w", err)
	}
	return bundles + store, nil
}
