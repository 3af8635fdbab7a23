package metrics

import (
	"bytes"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Registry holds every collector exposed on /metrics.
var Registry = prometheus.NewRegistry()

var (
	SessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "microticks",
		Name:      "sessions_started_total",
		Help:      "Total number of sessions started.",
	})
	SessionsStopped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "microticks",
		Name:      "sessions_stopped_total",
		Help:      "Total number of sessions stopped.",
	})
	ConsumersRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "microticks",
		Name:      "consumers_registered_total",
		Help:      "Total number of consumers registered.",
	})
	EventsStored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "microticks",
		Name:      "events_stored_total",
		Help:      "Total number of events stored, by action.",
	}, []string{"action"})
	RequestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "microticks",
		Name:      "request_errors_total",
		Help:      "Requests that failed, by error kind.",
	}, []string{"kind"})
	CleanupDeleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "microticks",
		Name:      "cleanup_deleted_total",
		Help:      "Rows removed by the startup cleanup, by table.",
	}, []string{"table"})
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "microticks",
		Name:      "request_duration_seconds",
		Help:      "Histogram of request durations in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method", "route"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		SessionsStarted, SessionsStopped, ConsumersRegistered, EventsStored, RequestErrors, CleanupDeleted, RequestDuration,
	)
}

// Families gathers the registry, keeping only families whose name starts
// with prefix. An empty prefix keeps everything.
func Families(prefix string) ([]*dto.MetricFamily, error) {
	families, err := Registry.Gather()
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		return families, nil
	}

	filtered := make([]*dto.MetricFamily, 0, len(families))
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), prefix) {
			filtered = append(filtered, mf)
		}
	}
	return filtered, nil
}

// Encode renders families in the Prometheus text exposition format.
func Encode(families []*dto.MetricFamily) ([]byte, error) {
	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// ContentType is the Content-Type of Encode's output.
func ContentType() string {
	return string(expfmt.FmtText)
}
