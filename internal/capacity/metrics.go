package capacity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeMatchesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "judge",
		Name:      "active_matches",
		Help:      "Matches currently running on this replica.",
	})
	activeRoomsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "judge",
		Name:      "active_rooms",
		Help:      "Rooms currently hosted on this replica.",
	})
	loadGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "judge",
		Name:      "load_ratio",
		Help:      "(active_rooms+active_matches)/max_capacity, clamped to [0,1].",
	})
	claimDelayHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "judge",
		Name:      "claim_delay_ms",
		Help:      "Claim delay a watcher slept before its last claim attempt.",
		Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000, 2000},
	})
	matchesClaimedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "judge",
		Name:      "matches_claimed_total",
		Help:      "Matches this replica won the claim race for, by game.",
	}, []string{"game"})
	matchesCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "judge",
		Name:      "matches_completed_total",
		Help:      "Matches this replica finished, by game and terminal status.",
	}, []string{"game", "status"})
)

// ObserveClaimDelay publishes one watcher tick's computed delay.
func ObserveClaimDelay(ms int) {
	claimDelayHistogram.Observe(float64(ms))
}

// RecordClaim increments the per-game claimed counter.
func RecordClaim(gameSlug string) {
	matchesClaimedTotal.WithLabelValues(gameSlug).Inc()
}

// RecordCompletion increments the per-game, per-status completed counter.
func RecordCompletion(gameSlug, status string) {
	matchesCompletedTotal.WithLabelValues(gameSlug, status).Inc()
}

// PublishSnapshot pushes a Tracker's current state to the gauges. Called
// after every capacity mutation so /metrics scrapes never read stale values.
func PublishSnapshot(s Stats) {
	activeMatchesGauge.Set(float64(s.ActiveMatches))
	activeRoomsGauge.Set(float64(s.ActiveRooms))
	loadGauge.Set(s.LoadPercentage / 100)
}
