package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const memoryPath = ":memory:"

// SQLiteStore implements the Journal interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// every connection to :memory: is a separate database
	if cfg.Path == memoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

func (s *SQLiteStore) dsn() string {
	pragmas := []string{"_pragma=busy_timeout(5000)", "_pragma=foreign_keys(1)", "_txlock=immediate"}
	if s.cfg.Path != memoryPath {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)")
	}
	return s.cfg.Path + "?" + strings.Join(pragmas, "&")
}

// Init opens the database connection.
func (s *SQLiteStore) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	log.Debug().Str("path", s.cfg.Path).Msg("journal opened")
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs the embedded database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// AppendEntry records a new journal entry
func (s *SQLiteStore) AppendEntry(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Params == "" {
		entry.Params = "{}"
	}
	switch entry.Status {
	case EntryStatusApplied, EntryStatusUndone, EntryStatusRejected:
	default:
		return fmt.Errorf("invalid entry status: %q", entry.Status)
	}

	query := `
		INSERT INTO journal (id, request_id, address, operation, params, compensation, status, error, created_at, undone_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.RequestID,
		entry.Address,
		entry.Operation,
		entry.Params,
		entry.Compensation,
		string(entry.Status),
		entry.Error,
		entry.CreatedAt.UnixNano(),
		unixNanoOrNil(entry.UndoneAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get entry sequence: %w", err)
	}
	entry.Seq = seq
	return nil
}

const entryColumns = `seq, id, request_id, address, operation, params, compensation, status, error, created_at, undone_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	e := &Entry{}
	var status string
	var created int64
	var undone sql.NullInt64
	if err := row.Scan(
		&e.Seq,
		&e.ID,
		&e.RequestID,
		&e.Address,
		&e.Operation,
		&e.Params,
		&e.Compensation,
		&status,
		&e.Error,
		&created,
		&undone,
	); err != nil {
		return nil, err
	}
	e.Status = EntryStatus(status)
	e.CreatedAt = time.Unix(0, created).UTC()
	if undone.Valid {
		t := time.Unix(0, undone.Int64).UTC()
		e.UndoneAt = &t
	}
	return e, nil
}

// GetEntry retrieves an entry by ID
func (s *SQLiteStore) GetEntry(ctx context.Context, id string) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal WHERE id = ?`

	e, err := scanEntry(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

// ListEntries lists entries in sequence order with optional filters
func (s *SQLiteStore) ListEntries(ctx context.Context, filter EntryFilter) ([]*Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	query := `
		SELECT ` + entryColumns + `
		FROM journal
		WHERE (? = '' OR status = ?)
		  AND (? = '' OR address = ?)
		ORDER BY seq ASC
		LIMIT ? OFFSET ?
	`

	status := string(filter.Status)
	rows, err := s.db.QueryContext(ctx, query, status, status, filter.Address, filter.Address, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entries, nil
}

// LastApplied returns the newest applied entry, or ErrNotFound
func (s *SQLiteStore) LastApplied(ctx context.Context) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal WHERE status = ? ORDER BY seq DESC LIMIT 1`

	e, err := scanEntry(s.db.QueryRowContext(ctx, query, string(EntryStatusApplied)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no applied entries", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last applied entry: %w", err)
	}
	return e, nil
}

// MarkUndone moves an applied entry to the undone state
func (s *SQLiteStore) MarkUndone(ctx context.Context, id string) error {
	query := `UPDATE journal SET status = ?, undone_at = ? WHERE id = ? AND status = ?`

	result, err := s.db.ExecContext(ctx, query,
		string(EntryStatusUndone),
		time.Now().UTC().UnixNano(),
		id,
		string(EntryStatusApplied),
	)
	if err != nil {
		return fmt.Errorf("failed to mark entry undone: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: no applied entry %s", ErrNotFound, id)
	}
	return nil
}

// CountEntries counts entries with the given status, or all entries
// when status is empty
func (s *SQLiteStore) CountEntries(ctx context.Context, status EntryStatus) (int, error) {
	query := `SELECT COUNT(*) FROM journal WHERE (? = '' OR status = ?)`

	var count int
	if err := s.db.QueryRowContext(ctx, query, string(status), string(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

func unixNanoOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}
