package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	CustomersCreatedTotal prometheus.Counter
	EventsPublishedTotal  *prometheus.CounterVec
	CustomersCurrent      *prometheus.GaugeVec
	CustomersFlagged      *prometheus.GaugeVec
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "customer_service_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		CustomersCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "customers_created_total",
				Help: "Total number of customers successfully created.",
			},
		),
		EventsPublishedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "customer_events_published_total",
				Help: "Customer events handed to the broker, by driver and outcome.",
			},
			[]string{"driver", "status"},
		),
		CustomersCurrent: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "customers_current",
				Help: "Number of stored customers by type and status.",
			},
			[]string{"type", "status"},
		),
		CustomersFlagged: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "customers_flagged",
				Help: "Number of stored customers carrying a VIP or PYM flag.",
			},
			[]string{"flag"},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordCustomerCreated() {
	Business.CustomersCreatedTotal.Inc()
}

func RecordEventPublished(driver, status string) {
	Business.EventsPublishedTotal.WithLabelValues(driver, status).Inc()
}

func SetCustomersCurrent(customerType, status string, count int) {
	Business.CustomersCurrent.WithLabelValues(customerType, status).Set(float64(count))
}

func SetCustomersFlagged(flag string, count int) {
	Business.CustomersFlagged.WithLabelValues(flag).Set(float64(count))
}
