package connection

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/Jacobbrewer1/plexcord/pkg/dataaccess/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite"
)

// SQLite is a database file opened through the pure Go driver.
type SQLite struct {
	// Path is the database file.
	Path string
}

// DSN returns the data source name with the pragmas every connection needs.
func (s *SQLite) DSN() string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + s.Path + "?" + q.Encode()
}

// Connect opens the file, creating it if it does not exist.
func (s *SQLite) Connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database %s: %w", s.Path, err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := PingSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// PingSQLite checks the database can be reached.
func PingSQLite(ctx context.Context, db *sql.DB) error {
	monitoring.DBTotalRequests.WithLabelValues("health_check", "ping", "sqlite", "-").Inc()
	t := prometheus.NewTimer(monitoring.DBLatency.WithLabelValues("health_check", "ping", "sqlite", "-"))
	defer t.ObserveDuration()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("error pinging sqlite: %w", err)
	}
	return nil
}
