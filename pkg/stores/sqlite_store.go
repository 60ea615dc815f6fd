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

	"github.com/openfroyo/froyo-neutron/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements the Store interface using SQLite
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
		return nil, engine.NewPermanentError("database path is required", nil).
			WithCode(engine.ErrCodeInvalidInput)
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: opens a separate database.
	if isMemory(cfg.Path) {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if !isMemory(s.cfg.Path) {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return engine.NewPermanentError("failed to open database", err).
			WithCode(engine.ErrCodeStoreFailure).WithSubject(s.cfg.Path)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return engine.NewTransientError("failed to ping database", err).
			WithCode(engine.ErrCodeStoreFailure).WithSubject(s.cfg.Path)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// SaveCatalog archives a catalog. Secret values are sealed before they
// reach the database.
func (s *SQLiteStore) SaveCatalog(ctx context.Context, catalog *engine.Catalog, source string) (*engine.CatalogRecord, error) {
	if catalog == nil {
		return nil, engine.NewPermanentError("catalog is required", nil).
			WithCode(engine.ErrCodeInvalidInput)
	}

	sealed := catalog.Sealed()
	body, err := sealed.Encode()
	if err != nil {
		return nil, err
	}
	digest, err := sealed.Digest()
	if err != nil {
		return nil, err
	}

	record := &engine.CatalogRecord{
		ID:             uuid.NewString(),
		Class:          sealed.Class,
		Digest:         digest,
		OSFamily:       sealed.Facts.OSFamily,
		DirectiveCount: len(sealed.Directives),
		Source:         source,
		CreatedAt:      time.Now().UTC(),
		Catalog:        sealed,
	}

	query := `
		INSERT INTO catalogs (id, class, digest, os_family, directive_count, source, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.Class,
		record.Digest,
		record.OSFamily,
		record.DirectiveCount,
		record.Source,
		string(body),
		record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save catalog: %w", err)
	}

	return record, nil
}

const catalogColumns = `id, class, digest, os_family, directive_count, source, body, created_at`

// GetCatalog retrieves an archived catalog by ID
func (s *SQLiteStore) GetCatalog(ctx context.Context, id string) (*engine.CatalogRecord, error) {
	query := `SELECT ` + catalogColumns + ` FROM catalogs WHERE id = ?`

	record, err := scanCatalog(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("catalog", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	return record, nil
}

// LatestCatalog retrieves the most recently archived catalog for source.
func (s *SQLiteStore) LatestCatalog(ctx context.Context, source string) (*engine.CatalogRecord, error) {
	query := `SELECT ` + catalogColumns + ` FROM catalogs`
	args := []any{}
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT 1`

	record, err := scanCatalog(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("catalog for source", source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest catalog: %w", err)
	}

	return record, nil
}

// ListCatalogs lists archived catalogs with pagination, newest first.
// Bodies are not loaded.
func (s *SQLiteStore) ListCatalogs(ctx context.Context, limit, offset int) ([]*engine.CatalogRecord, error) {
	query := `
		SELECT id, class, digest, os_family, directive_count, source, created_at
		FROM catalogs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalogs: %w", err)
	}
	defer rows.Close()

	records := []*engine.CatalogRecord{}
	for rows.Next() {
		record := &engine.CatalogRecord{}
		err := rows.Scan(
			&record.ID,
			&record.Class,
			&record.Digest,
			&record.OSFamily,
			&record.DirectiveCount,
			&record.Source,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalogs: %w", err)
	}

	return records, nil
}

// DeleteCatalog deletes an archived catalog by ID
func (s *SQLiteStore) DeleteCatalog(ctx context.Context, id string) error {
	query := `DELETE FROM catalogs WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete catalog: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return notFound("catalog", id)
	}

	return nil
}

// AppendCompileEvent appends a compile event
func (s *SQLiteStore) AppendCompileEvent(ctx context.Context, event *CompileEvent) error {
	query := `
		INSERT INTO compile_events (source, result, parameter, message, catalog_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, query,
		event.Source,
		event.Result,
		event.Parameter,
		event.Message,
		event.CatalogID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append compile event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	event.ID = id
	return nil
}

// ListCompileEvents lists compile events, newest first, optionally for one source
func (s *SQLiteStore) ListCompileEvents(ctx context.Context, source *string, limit, offset int) ([]*CompileEvent, error) {
	query := `SELECT id, source, result, parameter, message, catalog_id, timestamp FROM compile_events`
	args := []any{}

	if source != nil {
		query += ` WHERE source = ?`
		args = append(args, *source)
	}

	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list compile events: %w", err)
	}
	defer rows.Close()

	events := []*CompileEvent{}
	for rows.Next() {
		event := &CompileEvent{}
		err := rows.Scan(
			&event.ID,
			&event.Source,
			&event.Result,
			&event.Parameter,
			&event.Message,
			&event.CatalogID,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan compile event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating compile events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalog(row rowScanner) (*engine.CatalogRecord, error) {
	record := &engine.CatalogRecord{}
	var body string
	err := row.Scan(
		&record.ID,
		&record.Class,
		&record.Digest,
		&record.OSFamily,
		&record.DirectiveCount,
		&record.Source,
		&body,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	catalog, err := engine.DecodeCatalog([]byte(body))
	if err != nil {
		return nil, err
	}
	record.Catalog = catalog

	return record, nil
}

func notFound(what, id string) error {
	return engine.NewPermanentError(fmt.Sprintf("%s not found: %s", what, id), nil).
		WithCode(engine.ErrCodeNotFound).WithSubject(id)
}
