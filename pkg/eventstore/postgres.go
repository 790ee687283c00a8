package eventstore

import (
	"context"
	stdsql "database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/codeready-toolchain/sentinel/pkg/apperrors"
	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

//go:embed migrations
var migrationsFS embed.FS

// partitionBuckets is the number of logical hot-partition buckets a future
// sharded backend could split incident_events across. A single Postgres
// table has no physical partitions here, but the column is populated so a
// later migration can add PARTITION BY on it without a backfill.
const partitionBuckets = 64

// Config configures the Postgres-backed Store: host/port/credentials plus
// connection-pool tuning.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Postgres is the production Store implementation.
type Postgres struct {
	db *stdsql.DB
}

// NewPostgres opens a pooled connection, applies embedded migrations, and
// returns a ready-to-use Store.
func NewPostgres(ctx context.Context, cfg Config) (*Postgres, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("eventstore: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("eventstore: ping: %w", err)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("eventstore: migrate: %w", err)
	}

	return &Postgres{db: db}, nil
}

// NewPostgresFromDB wraps an already-open *sql.DB (used by sqlmock-backed
// unit tests, which cannot go through stdsql.Open("pgx", ...)).
func NewPostgresFromDB(db *stdsql.DB) *Postgres {
	return &Postgres{db: db}
}

func runMigrations(db *stdsql.DB, database string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, database, driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	// Don't call m.Close(): it would close the shared *sql.DB via the
	// driver it wraps. Close only the source side.
	return source.Close()
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping reports whether the underlying connection pool can reach the
// database, for the operational surface's readiness check.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func partitionBucket(incidentID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(incidentID))
	return int(h.Sum32() % partitionBuckets)
}

func (p *Postgres) Append(ctx context.Context, incidentID string, kind incident.EventKind, payload map[string]any) (incident.IncidentEvent, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return incident.IncidentEvent{}, fmt.Errorf("eventstore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Serialize appenders for this incident with a transaction-scoped
	// advisory lock keyed on the incident id, so two concurrent Append
	// calls for the same incident never compute the same next sequence
	// number, even for an id that has no rows yet.
	lockKey := fnvHash(incidentID)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return incident.IncidentEvent{}, fmt.Errorf("eventstore: advisory lock: %w", err)
	}

	var prevHash string
	var lastSeq int
	row := tx.QueryRowContext(ctx, `
		SELECT sequence_number, integrity_hash FROM incident_events
		WHERE incident_id = $1
		ORDER BY sequence_number DESC LIMIT 1`, incidentID)
	switch err := row.Scan(&lastSeq, &prevHash); err {
	case nil:
	case stdsql.ErrNoRows:
		lastSeq, prevHash = 0, ZeroHash
	default:
		return incident.IncidentEvent{}, fmt.Errorf("eventstore: read last sequence: %w", err)
	}

	ev := incident.IncidentEvent{
		IncidentID:     incidentID,
		SequenceNumber: lastSeq + 1,
		Kind:           kind,
		Payload:        payload,
		RecordedAt:     time.Now().UTC(),
		PrevHash:       prevHash,
	}
	ev.IntegrityHash = ComputeHash(prevHash, ev)

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return incident.IncidentEvent{}, fmt.Errorf("eventstore: marshal payload: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO incident_events
			(incident_id, sequence_number, kind, payload, recorded_at, prev_hash, integrity_hash, partition_bucket)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.IncidentID, ev.SequenceNumber, string(ev.Kind), payloadJSON, ev.RecordedAt, ev.PrevHash, ev.IntegrityHash, partitionBucket(incidentID),
	)
	if err != nil {
		return incident.IncidentEvent{}, fmt.Errorf("eventstore: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return incident.IncidentEvent{}, fmt.Errorf("eventstore: commit: %w", err)
	}
	return ev, nil
}

func (p *Postgres) Read(ctx context.Context, incidentID string, afterSeq, limit int) ([]incident.IncidentEvent, error) {
	query := `
		SELECT incident_id, sequence_number, kind, payload, recorded_at, prev_hash, integrity_hash
		FROM incident_events
		WHERE incident_id = $1 AND sequence_number > $2
		ORDER BY sequence_number ASC`
	args := []any{incidentID, afterSeq}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventstore: read: %w", err)
	}
	defer rows.Close()

	var out []incident.IncidentEvent
	for rows.Next() {
		var ev incident.IncidentEvent
		var kind string
		var payloadJSON []byte
		if err := rows.Scan(&ev.IncidentID, &ev.SequenceNumber, &kind, &payloadJSON, &ev.RecordedAt, &ev.PrevHash, &ev.IntegrityHash); err != nil {
			return nil, fmt.Errorf("eventstore: scan: %w", err)
		}
		ev.Kind = incident.EventKind(kind)
		if err := json.Unmarshal(payloadJSON, &ev.Payload); err != nil {
			return nil, fmt.Errorf("eventstore: unmarshal payload: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (p *Postgres) Replay(ctx context.Context, incidentID string) (*incident.Incident, error) {
	return replayWithVerification(ctx, p, incidentID)
}

func (p *Postgres) VerifyChain(ctx context.Context, incidentID string) error {
	events, err := p.Read(ctx, incidentID, 0, 0)
	if err != nil {
		return err
	}
	prevHash := ZeroHash
	for _, ev := range events {
		want := ComputeHash(prevHash, ev)
		if want != ev.IntegrityHash {
			return fmt.Errorf("incident %s seq %d: %w", incidentID, ev.SequenceNumber, apperrors.ErrChainBroken)
		}
		prevHash = ev.IntegrityHash
	}
	return nil
}

func fnvHash(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
