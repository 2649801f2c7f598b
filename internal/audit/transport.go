package audit

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

// ErrNoTransport is returned when auditing is enabled without a target.
var ErrNoTransport = errors.New("audit enabled but none of url, dsn or sheet_url is set")

// NewTransport picks the transport configured in opts. A DSN wins over a
// sheet URL, which wins over a plain URL.
func NewTransport(ctx context.Context, opts Options) (Transport, error) {
	switch {
	case opts.DSN != "":
		return NewPostgresTransport(ctx, opts.DSN, opts.Table)
	case opts.SheetURL != "":
		return NewSheetsTransport(ctx, opts.SheetURL, opts.SheetName)
	case opts.URL != "":
		return NewHTTPTransport(opts.URL, opts.Timeout), nil
	default:
		return nil, ErrNoTransport
	}
}

// HTTPTransport posts each record as JSON.
type HTTPTransport struct {
	url    string
	client *http.Client
}

// NewHTTPTransport creates an HTTPTransport for url.
func NewHTTPTransport(url string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{url: url, client: &http.Client{Timeout: timeout}}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build audit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post audit record: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("audit endpoint returned %s", resp.Status)
	}
	return nil
}

// Close implements Transport.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresTransport inserts records into a table through the pgx driver.
type PostgresTransport struct {
	db    *sql.DB
	table string
}

// NewPostgresTransport opens dsn, verifies the connection and makes sure
// the audit table exists.
func NewPostgresTransport(ctx context.Context, dsn, table string) (*PostgresTransport, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(2)

	t, err := NewPostgresTransportWithDB(ctx, db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return t, nil
}

// NewPostgresTransportWithDB wraps an existing connection pool.
func NewPostgresTransportWithDB(ctx context.Context, db *sql.DB, table string) (*PostgresTransport, error) {
	if table == "" {
		table = DefaultOptions().Table
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid audit table name %q", table)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id           TEXT PRIMARY KEY,
		job_id       TEXT NOT NULL,
		file         TEXT NOT NULL,
		kind         TEXT NOT NULL,
		status       TEXT NOT NULL,
		start_page   INTEGER NOT NULL,
		end_page     INTEGER NOT NULL,
		label        TEXT NOT NULL,
		score        INTEGER NOT NULL,
		strict_valid BOOLEAN NOT NULL,
		method       TEXT,
		confidence   DOUBLE PRECISION,
		attempts     INTEGER NOT NULL,
		destination  TEXT,
		error        TEXT,
		elapsed_ms   BIGINT,
		created_at   TIMESTAMPTZ NOT NULL
	)`, table)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &PostgresTransport{db: db, table: table}, nil
}

// Send implements Transport.
func (t *PostgresTransport) Send(ctx context.Context, rec Record) error {
	_, err := t.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, job_id, file, kind, status, start_page, end_page, label,
		 score, strict_valid, method, confidence, attempts, destination, error, elapsed_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`, t.table),
		rec.ID, rec.JobID, rec.File, string(rec.Kind), string(rec.Status), rec.StartPage, rec.EndPage, rec.Label,
		rec.Score, rec.StrictValid, rec.Method, rec.Confidence, rec.Attempts, rec.Destination, rec.Error,
		rec.ElapsedMs, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("postgresTransport.Send: %w", err)
	}
	return nil
}

// Close implements Transport.
func (t *PostgresTransport) Close() error {
	return t.db.Close()
}
