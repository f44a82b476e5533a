package model

// StorageSnapshot is the derived view of device and app storage. It is
// recomputed on every request and never persisted; the quota scales with the
// current device capacity, so nothing in here may be cached across calls.
type StorageSnapshot struct {
	TotalDeviceBytes   uint64  `json:"totalDeviceBytes"`
	FreeDeviceBytes    uint64  `json:"freeDeviceBytes"`
	AppUsedBytes       int64   `json:"appUsedBytes"`
	QuotaBytes         int64   `json:"quotaBytes"`
	UsageRatio         float64 `json:"usageRatio"`
	IsApproachingLimit bool    `json:"isApproachingLimit"`
	IsOverLimit        bool    `json:"isOverLimit"`
	CanGoOffline       bool    `json:"canGoOffline"`
}

// Progress reports the state of one in-flight unit transfer.
type Progress struct {
	BundleID        string  `json:"bundleId"`
	UnitID          string  `json:"unitId"`
	TotalBytes      int64   `json:"totalBytes"`
	BytesDownloaded int64   `json:"bytesDownloaded"`
	Percentage      float64 `json:"percentage"`
}
