package dataaccess

import (
	"errors"

	"github.com/Jacobbrewer1/plexcord/pkg/dataaccess/monitoring"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DriverSQLite stores everything in SQLite files under the data directory.
	DriverSQLite = "sqlite"

	// DriverMongo stores everything in MongoDB.
	DriverMongo = "mongodb"
)

const mongoDatabase = "plexcord"

const (
	ticketsDBFile = "ticket_system.db"
	invitesDBFile = "invites.db"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert collides with an existing key.
	ErrDuplicate = errors.New("duplicate key")

	// ErrConflict is returned when a record changed since it was read.
	ErrConflict = errors.New("record modified concurrently")
)

// track counts a query and returns a timer measuring its latency.
func track(dal, query, driver, table string) *prometheus.Timer {
	monitoring.DBTotalRequests.WithLabelValues(dal, query, driver, table).Inc()
	return prometheus.NewTimer(monitoring.DBLatency.WithLabelValues(dal, query, driver, table))
}
