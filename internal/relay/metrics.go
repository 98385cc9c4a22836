package relay

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the relay's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	eventsFetched   prometheus.Counter
	eventsDelivered prometheus.Counter
	sourceErrors    prometheus.Counter
	deliveries      *prometheus.CounterVec
	watermark       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ghrelay_cycles_total",
			Help: "Poll cycles by result",
		}, []string{"result"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ghrelay_cycle_duration_seconds",
			Help:    "Wall time of a poll cycle",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		eventsFetched: f.NewCounter(prometheus.CounterOpts{
			Name: "ghrelay_events_fetched_total",
			Help: "Events fetched after deduplication",
		}),
		eventsDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "ghrelay_events_new_total",
			Help: "Events selected for delivery",
		}),
		sourceErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "ghrelay_source_fetch_errors_total",
			Help: "Repository feeds that failed to fetch",
		}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ghrelay_deliveries_total",
			Help: "Message blocks sent per destination and result",
		}, []string{"destination", "result"}),
		watermark: f.NewGauge(prometheus.GaugeOpts{
			Name: "ghrelay_watermark_timestamp_seconds",
			Help: "Current watermark as a unix timestamp",
		}),
	}
}

func (m *Metrics) cycle(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(took.Seconds())
}

func (m *Metrics) fetched(total, selected, failedSources int) {
	if m == nil {
		return
	}
	m.eventsFetched.Add(float64(total))
	m.eventsDelivered.Add(float64(selected))
	m.sourceErrors.Add(float64(failedSources))
}

func (m *Metrics) delivery(dest string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.deliveries.WithLabelValues(dest, result).Inc()
}

func (m *Metrics) setWatermark(t time.Time) {
	if m == nil || t.IsZero() {
		return
	}
	m.watermark.Set(float64(t.Unix()))
}
