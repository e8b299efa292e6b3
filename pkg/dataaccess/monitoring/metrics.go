package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DBLatency is the duration of database queries.
	DBLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "dataaccess_db_latency",
			Help: "Duration of database queries",
		},
		[]string{"dal", "query", "driver", "table"},
	)

	// DBTotalRequests is the total number of database requests.
	DBTotalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataaccess_db_total_requests",
			Help: "Total number of database requests",
		},
		[]string{"dal", "query", "driver", "table"},
	)
)
