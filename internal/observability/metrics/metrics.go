// Package metrics provides Prometheus instrumentation for contradeploy.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "contradeploy"

var (
	enabled  bool
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Deployment metrics
	deploymentsTotal   *prometheus.CounterVec
	deploymentDuration *prometheus.HistogramVec
	deploymentGasUsed  *prometheus.GaugeVec

	// Verification metrics
	verificationsTotal *prometheus.CounterVec
)

// Init initializes the metrics system. Calling it again starts from a
// fresh registry.
func Init(enabledFlag bool) {
	enabled = enabledFlag
	registry = nil

	if !enabled {
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	deploymentsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployments_total",
			Help:      "Total number of contract deployments",
		},
		[]string{"network", "status"},
	)

	// Block times dominate, from sub-second dev nodes to minutes on busy chains
	deploymentDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deployment_duration_seconds",
			Help:      "Time from factory lookup to confirmed deployment",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"network"},
	)

	deploymentGasUsed = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deployment_gas_used",
			Help:      "Gas used by the last deployment of a contract",
		},
		[]string{"network", "contract"},
	)

	verificationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Total number of deployment verifications",
		},
		[]string{"network", "result"},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// Gatherer returns the registry, or nil when metrics are disabled.
func Gatherer() prometheus.Gatherer {
	if !enabled {
		return nil
	}
	return registry
}

// WriteTextfile writes the contradeploy metrics, without Go runtime and
// process metrics, to path in the node_exporter textfile format.
func WriteTextfile(path string) error {
	if !enabled || path == "" {
		return nil
	}
	own := prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		families, err := registry.Gather()
		var out []*dto.MetricFamily
		for _, mf := range families {
			if strings.HasPrefix(mf.GetName(), namespace+"_") {
				out = append(out, mf)
			}
		}
		return out, err
	})
	return prometheus.WriteToTextfile(path, own)
}
