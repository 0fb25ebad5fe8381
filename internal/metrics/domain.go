package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	syncOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "talentvault",
			Subsystem: "sync",
			Name:      "operations_total",
			Help:      "Sync operations by direction and outcome.",
		},
		[]string{"direction", "status"},
	)

	backupOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "talentvault",
			Subsystem: "backup",
			Name:      "operations_total",
			Help:      "Backup operations by type and outcome.",
		},
		[]string{"type", "status"},
	)

	backupLastSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "talentvault",
			Subsystem: "backup",
			Name:      "last_artifact_bytes",
			Help:      "Size in bytes of the most recent backup artifact.",
		},
	)
)

func registerDomain() {
	domainOnce.Do(func() {
		prometheus.MustRegister(syncOperations, backupOperations, backupLastSize)
	})
}

// ObserveSync records the outcome of one sync operation.
func ObserveSync(direction, status string) {
	registerDomain()
	syncOperations.WithLabelValues(direction, status).Inc()
}

// ObserveBackup records the outcome of one backup operation.
func ObserveBackup(backupType, status string) {
	registerDomain()
	backupOperations.WithLabelValues(backupType, status).Inc()
}

// SetLastBackupSize publishes the size of the most recent artifact.
func SetLastBackupSize(bytes int64) {
	registerDomain()
	backupLastSize.Set(float64(bytes))
}
