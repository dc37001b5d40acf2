package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	backendUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sidekick",
		Name:      "backend_up",
		Help:      "Whether a backend is believed to be serving (1=up, 0=down).",
	}, []string{"backend"})

	backendSpawns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sidekick",
		Name:      "backend_spawns_total",
		Help:      "Total number of backend processes spawned by this supervisor.",
	}, []string{"backend"})

	backendShutdowns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sidekick",
		Name:      "backend_shutdowns_total",
		Help:      "Total number of backend terminations issued by this supervisor.",
	}, []string{"backend"})

	probeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sidekick",
		Name:      "probe_latency_seconds",
		Help:      "Latency of liveness probe attempts in seconds.",
	}, []string{"backend"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sidekick",
		Name:      "build_info",
		Help:      "Build metadata for the running sidekick binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(backendUp, backendSpawns, backendShutdowns, probeLatency, buildInfo)
}

// Registry returns the Prometheus registry containing all sidekick metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetBackendUp records whether the named backend is believed to be serving.
func SetBackendUp(backend string, up bool) {
	if backend == "" {
		return
	}
	value := 0.0
	if up {
		value = 1.0
	}
	backendUp.WithLabelValues(backend).Set(value)
}

// IncrementBackendSpawn increments the spawn counter for a backend.
func IncrementBackendSpawn(backend string) {
	if backend == "" {
		return
	}
	backendSpawns.WithLabelValues(backend).Inc()
}

// IncrementBackendShutdown increments the termination counter for a backend.
func IncrementBackendShutdown(backend string) {
	if backend == "" {
		return
	}
	backendShutdowns.WithLabelValues(backend).Inc()
}

// ObserveProbeLatency records the latency of a liveness probe attempt.
func ObserveProbeLatency(backend string, d time.Duration) {
	label := backend
	if label == "" {
		label = "unknown"
	}
	probeLatency.WithLabelValues(label).Observe(d.Seconds())
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
