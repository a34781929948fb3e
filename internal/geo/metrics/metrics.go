package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for a reconciliation run. Counters are
// labelled by hierarchy level so the per-level breakdown survives in the
// scrape even after the process exits (pushed or scraped mid-run).
type Metrics struct {
	Merges        *prometheus.CounterVec
	Creates       *prometheus.CounterVec
	Renames       *prometheus.CounterVec
	RenameSkips   *prometheus.CounterVec
	OrphansSwept  *prometheus.CounterVec
	RefsRepointed *prometheus.CounterVec
	SyncDuration  *prometheus.HistogramVec
}

// New creates a Metrics instance with all engine metrics registered.
func New() *Metrics {
	return &Metrics{
		Merges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "geosync_merges_total",
			Help: "Duplicate nodes merged into a canonical sibling",
		}, []string{"level"}),
		Creates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "geosync_creates_total",
			Help: "Canonical nodes created because no store node matched",
		}, []string{"level"}),
		Renames: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "geosync_renames_total",
			Help: "Store nodes renamed/recoded to canonical spelling",
		}, []string{"level"}),
		RenameSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "geosync_rename_skips_total",
			Help: "Renames skipped because a sibling name or code collided",
		}, []string{"level"}),
		OrphansSwept: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "geosync_orphans_swept_total",
			Help: "Orphaned rows removed or nulled by the sweeper",
		}, []string{"kind"}),
		RefsRepointed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "geosync_refs_repointed_total",
			Help: "Dependent foreign keys repointed during merges",
		}, []string{"level"}),
		SyncDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geosync_level_sync_duration_seconds",
			Help:    "Duration of one level's full synchronization",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"level"}),
	}
}

// ObserveSync records the duration of one level's synchronization.
// Call with time.Now() at the start of the level.
func (m *Metrics) ObserveSync(level string, start time.Time) {
	m.SyncDuration.WithLabelValues(level).Observe(time.Since(start).Seconds())
}
