package offline

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TalWayn72/EduSphere-sub002/pkg/interfaces"
)

// Config configures an Engine instance. DataDir and BundleDir are created on
// Start if missing. Connectivity, Remote and Transferrer are the boundary
// collaborators; tests inject mocks, production wires the platform.
type Config struct {
	// DataDir holds the persistent store's backing files.
	DataDir string
	// BundleDir is the root directory for downloaded bundle media.
	BundleDir string
	// QuotaFraction of total device capacity the app may use. 0 means the
	// default policy of one half.
	QuotaFraction float64
	// WarnFraction of the quota at which the warning state begins. 0 means
	// the default of 0.8.
	WarnFraction float64
	// CachePruneAge is the age cutoff for routine cache maintenance. 0 means
	// seven days.
	CachePruneAge time.Duration

	Connectivity interfaces.Connectivity
	Remote       interfaces.Executor
	// Capacity probes device storage. If nil, a gopsutil probe rooted at
	// DataDir is used.
	Capacity interfaces.Capacity
	// Transferrer performs unit transfers. If nil, the HTTP implementation
	// with range resume is used.
	Transferrer interfaces.Transferrer

	// Logger is an optional structured logger. If nil, a default logrus
	// logger is used.
	Logger *logrus.Logger
}
