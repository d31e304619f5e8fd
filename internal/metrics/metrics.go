package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "dronedash_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once
	registry     *prometheus.Registry

	collectTotal   *prometheus.CounterVec
	collectLatency *prometheus.HistogramVec
	emptySnapshots prometheus.Counter

	partitionSize    prometheus.Gauge
	evictedSnapshots prometheus.Counter
	queryTotal       *prometheus.CounterVec
	purgeTotal       *prometheus.CounterVec
	purgedPartitions prometheus.Counter

	arenaFetchTotal *prometheus.CounterVec
	arenaTargets    prometheus.Gauge

	detectionsTotal prometheus.Counter
	missionComplete prometheus.Gauge
	agentOutside    prometheus.Gauge
)

// Init registers the collectors on a dedicated registry. Recording helpers
// are no-ops until Init has run.
func Init() {
	registerOnce.Do(func() {
		registry = prometheus.NewRegistry()

		collectTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "collect_total",
				Help: "Telemetry collection ticks by result",
			},
			[]string{"result"},
		)
		collectLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "collect_latency_seconds",
				Help:    "Time to assemble and persist one snapshot",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		emptySnapshots = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "empty_snapshots_total",
			Help: "Snapshots recorded with no telemetry channel present",
		})

		partitionSize = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "history_partition_size",
			Help: "Snapshots held by the most recently written partition",
		})
		evictedSnapshots = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "history_evicted_total",
			Help: "Snapshots dropped by partition retention",
		})
		queryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_query_total",
				Help: "History range queries by result",
			},
			[]string{"result"},
		)
		purgeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_purge_total",
				Help: "History purge requests by result",
			},
			[]string{"result"},
		)
		purgedPartitions = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "history_purged_partitions_total",
			Help: "Partition files removed by purge",
		})

		arenaFetchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "arena_fetch_total",
				Help: "Arena data fetches by result",
			},
			[]string{"result"},
		)
		arenaTargets = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "arena_targets",
			Help: "Targets in the latest successful arena fetch",
		})

		detectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "detections_total",
			Help: "Targets newly detected",
		})
		missionComplete = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "mission_complete",
			Help: "1 once every expected target has been detected",
		})
		agentOutside = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "agent_outside_arena",
			Help: "1 while the agent is outside the arena boundary",
		})

		registry.MustRegister(
			collectTotal,
			collectLatency,
			emptySnapshots,
			partitionSize,
			evictedSnapshots,
			queryTotal,
			purgeTotal,
			purgedPartitions,
			arenaFetchTotal,
			arenaTargets,
			detectionsTotal,
			missionComplete,
			agentOutside,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	Init()

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveCollect records one collection tick
func ObserveCollect(result string, duration time.Duration, empty bool) {
	if collectTotal != nil {
		collectTotal.WithLabelValues(normalize(result)).Inc()
	}
	if collectLatency != nil {
		collectLatency.WithLabelValues(normalize(result)).Observe(duration.Seconds())
	}
	if empty && emptySnapshots != nil {
		emptySnapshots.Inc()
	}
}

// ObserveAppend records the partition size after a write and any evictions
func ObserveAppend(size, evicted int) {
	if partitionSize != nil {
		partitionSize.Set(float64(size))
	}
	if evicted > 0 && evictedSnapshots != nil {
		evictedSnapshots.Add(float64(evicted))
	}
}

// ObserveQuery records a history range query
func ObserveQuery(result string) {
	if queryTotal != nil {
		queryTotal.WithLabelValues(normalize(result)).Inc()
	}
}

// ObservePurge records a purge and how many partitions it removed
func ObservePurge(result string, removed int) {
	if purgeTotal != nil {
		purgeTotal.WithLabelValues(normalize(result)).Inc()
	}
	if removed > 0 && purgedPartitions != nil {
		purgedPartitions.Add(float64(removed))
	}
}

// ObserveArenaFetch records an arena fetch and the number of targets it carried
func ObserveArenaFetch(result string, targets int) {
	if arenaFetchTotal != nil {
		arenaFetchTotal.WithLabelValues(normalize(result)).Inc()
	}
	if result == ResultSuccess && arenaTargets != nil {
		arenaTargets.Set(float64(targets))
	}
}

// ObserveDetections records newly detected targets and mission state
func ObserveDetections(newly int, complete bool) {
	if newly > 0 && detectionsTotal != nil {
		detectionsTotal.Add(float64(newly))
	}
	if missionComplete != nil {
		missionComplete.Set(boolToFloat(complete))
	}
}

// ObserveAgent records whether the agent is inside the arena
func ObserveAgent(outside bool) {
	if agentOutside != nil {
		agentOutside.Set(boolToFloat(outside))
	}
}

func normalize(result string) string {
	if result == "" {
		return ResultSuccess
	}
	return result
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
