package quota

import (
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

// DiskCapacity probes device capacity through gopsutil, rooted at the
// filesystem hosting the given path.
type DiskCapacity struct {
	Path string
}

func (d DiskCapacity) TotalBytes() (uint64, error) {
	usage, err := disk.Usage(d.Path)
	if err != nil {
		return 0, err
	}
	return usage.Total, nil
}

func (d DiskCapacity) FreeBytes() (uint64, error) {
	usage, err := disk.Usage(d.Path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// dirSize sums the sizes of all files under path. A missing path counts as
// zero, which keeps the eviction operations idempotent.
func dirSize(path string) (size int64, err error) {
	err = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
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
	if os.IsNotExist(err) {
		return 0, nil
	}
	return size, err
}

// LogUsage writes a structured usage line, mirroring what the snapshot sees.
// Useful from the daemon on startup.
func (e *Engine) LogUsage() {
	snap, err := e.Snapshot()
	if err != nil {
		log.Errorf("Error computing storage snapshot: %v", err)
		return
	}
	log.WithFields(logrus.Fields{
		"Total (GB)":    float64(snap.TotalDeviceBytes) / 1e9,
		"Free (GB)":     float64(snap.FreeDeviceBytes) / 1e9,
		"Used by app":   snap.AppUsedBytes,
		"Quota (bytes)": snap.QuotaBytes,
		"Usage ratio":   snap.UsageRatio,
	}).Info("Storage usage")
}
