package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "depotwatch"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	cycleDuration    prom.Histogram
	cycleOutcomes    *prom.CounterVec
	fetchDuration    *prom.HistogramVec
	changedManifests prom.Counter
	changeNumber     *prom.GaugeVec
	notifications    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		cycleDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of tracking cycles",
			Buckets:   prom.DefBuckets,
		}),
		cycleOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Tracking cycles by outcome",
		}, []string{"outcome"}),
		fetchDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of data source fetches",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		changedManifests: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "changed_manifests_total",
			Help:      "Manifest entries reported as changed",
		}),
		changeNumber: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "change_number",
			Help:      "Current change number per tracked identifier",
		}, []string{"identifier"}),
		notifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Change notifications by kind and result",
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(pr.cycleDuration, pr.cycleOutcomes, pr.fetchDuration, pr.changedManifests, pr.changeNumber, pr.notifications)
	return pr
}

func (p *PrometheusRecorder) ObserveCycleDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.cycleDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCycleOutcome(outcome OutcomeLabel) {
	if p == nil {
		return
	}
	p.cycleOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveFetchDuration(d time.Duration, success bool) {
	if p == nil {
		return
	}
	p.fetchDuration.WithLabelValues(resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddChangedManifests(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.changedManifests.Add(float64(n))
}

func (p *PrometheusRecorder) SetChangeNumber(identifier string, changeNumber int64) {
	if p == nil {
		return
	}
	p.changeNumber.WithLabelValues(identifier).Set(float64(changeNumber))
}

func (p *PrometheusRecorder) IncNotification(kind string, success bool) {
	if p == nil {
		return
	}
	p.notifications.WithLabelValues(kind, resultLabel(success)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
