// Package metrics provides Prometheus metrics for fitquest.
// Counters, gauges and histograms for activity, progression unlocks,
// persistence and the session cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Activity ───────────────────────────────────────────────────────────────

// ActivitiesRecorded tracks entry-point calls by kind (workout, diet, ...).
var ActivitiesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fitquest",
	Name:      "activities_recorded_total",
	Help:      "Total activity events applied to user state.",
}, []string{"kind"})

// XPAwarded tracks experience credited by activity type.
var XPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fitquest",
	Name:      "xp_awarded_total",
	Help:      "Total XP credited to users.",
}, []string{"type"})

// LevelUps tracks level transitions.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "fitquest",
	Name:      "level_ups_total",
	Help:      "Total level-up events.",
})

// ─── Progression ────────────────────────────────────────────────────────────

// TrophyTierUnlocks tracks trophy tiers unlocked by trophy and tier.
var TrophyTierUnlocks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fitquest",
	Name:      "trophy_tier_unlocks_total",
	Help:      "Total trophy tiers unlocked.",
}, []string{"trophy", "tier"})

// BadgeUnlocks tracks unique badges granted.
var BadgeUnlocks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fitquest",
	Name:      "badge_unlocks_total",
	Help:      "Total unique badges granted.",
}, []string{"badge"})

// ChallengesCompleted tracks completed challenges by rotation type.
var ChallengesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fitquest",
	Name:      "challenges_completed_total",
	Help:      "Total challenges completed.",
}, []string{"type"})

// GoalsCompleted tracks completed goals by category.
var GoalsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fitquest",
	Name:      "goals_completed_total",
	Help:      "Total goals completed.",
}, []string{"category"})

// ─── Persistence ────────────────────────────────────────────────────────────

// StateLoads tracks state loads by result (ok, not_found, error).
var StateLoads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fitquest",
	Name:      "state_loads_total",
	Help:      "Total state loads by result.",
}, []string{"result"})

// StateSaves tracks state saves by trigger (debounce, flush, close) and result.
var StateSaves = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fitquest",
	Name:      "state_saves_total",
	Help:      "Total state saves by trigger and result.",
}, []string{"trigger", "result"})

// SaveLatency tracks store write duration in seconds.
var SaveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "fitquest",
	Name:      "state_save_seconds",
	Help:      "State save duration in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
})

// Migrations tracks schema migrations by source version.
var Migrations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fitquest",
	Name:      "state_migrations_total",
	Help:      "Total state snapshots migrated, by source schema version.",
}, []string{"from"})

// BlobDecodeFailures tracks JSON blob columns that failed to decode.
var BlobDecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fitquest",
	Name:      "blob_decode_failures_total",
	Help:      "Stored JSON blobs replaced with empty data after a decode failure.",
}, []string{"field"})

// ─── Sessions ───────────────────────────────────────────────────────────────

// SessionsCached tracks user sessions held in memory.
var SessionsCached = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "fitquest",
	Name:      "sessions_cached",
	Help:      "Number of user sessions held in the cache.",
})

// SessionEvictions tracks sessions evicted from the cache.
var SessionEvictions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "fitquest",
	Name:      "session_evictions_total",
	Help:      "Total user sessions evicted from the cache.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "fitquest",
	Name:      "health_check_status",
	Help:      "Health check status (1=healthy, 0=unhealthy).",
}, []string{"check"})
