package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/metrics"
)

// dsnPragmas apply to every pooled connection.
const dsnPragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// defaultListLimit bounds list and search queries given a non-positive limit.
const defaultListLimit = 50

// Store is a unified SQLite-based storage that provides access to
// the transcript, message and index interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database file at dbPath.
// If dbPath is empty, defaults to ~/.recall/data/recall.db.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".recall", "data", "recall.db")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Scalar functions must be registered before the first connection opens.
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("registering vector functions: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// newStoreFromDB wraps an existing handle without migrating.
func newStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// TranscriptStore returns a TranscriptStore interface backed by this store.
func (s *Store) TranscriptStore() driven.TranscriptStore {
	return &transcriptStore{store: s}
}

// MessageStore returns a MessageStore interface backed by this store.
func (s *Store) MessageStore() driven.MessageStore {
	return &messageStore{store: s}
}

// FullTextIndex returns a FullTextIndex backed by this store's FTS5 table.
// m may be nil.
func (s *Store) FullTextIndex(m *metrics.Metrics) driven.FullTextIndex {
	return &fullTextIndex{store: s, metrics: m}
}

// VectorIndex returns a VectorIndex accepting vectors of dims components.
// The index probes the distance function once on creation.
func (s *Store) VectorIndex(ctx context.Context, dims int) driven.VectorIndex {
	idx := &vectorIndex{store: s, dims: dims}
	idx.Probe(ctx)
	return idx
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// applyMigration runs one migration and records its version atomically.
func (s *Store) applyMigration(version int, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(content); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Transcript Store ====================

// transcriptStore implements driven.TranscriptStore.
type transcriptStore struct {
	store *Store
}

var _ driven.TranscriptStore = (*transcriptStore)(nil)

// transcriptColumns is the column list scanTranscript expects.
const transcriptColumns = "t.id, t.title, t.raw_text, t.cleaned_text, t.created_at, t.updated_at"

// SaveTranscript stores or updates a transcript.
func (s *transcriptStore) SaveTranscript(ctx context.Context, t *domain.Transcript) error {
	if t == nil || t.ID == "" {
		return domain.ErrInvalidInput
	}

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO transcripts (id, title, raw_text, cleaned_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			raw_text = excluded.raw_text,
			cleaned_text = excluded.cleaned_text,
			updated_at = excluded.updated_at
	`, t.ID, t.Title, t.RawText, t.CleanedText, t.CreatedAt.UTC(), t.UpdatedAt.UTC())

	if err != nil {
		return fmt.Errorf("saving transcript: %w", err)
	}
	return nil
}

// GetTranscript retrieves a transcript by ID.
func (s *transcriptStore) GetTranscript(ctx context.Context, id string) (*domain.Transcript, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+transcriptColumns+" FROM transcripts t WHERE t.id = ?", id)

	t, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTranscript removes a transcript. Messages, chunks and vectors
// go with it through ON DELETE CASCADE.
func (s *transcriptStore) DeleteTranscript(ctx context.Context, id string) error {
	result, err := s.store.db.ExecContext(ctx, "DELETE FROM transcripts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting transcript: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting transcript: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListTranscripts returns transcripts newest first.
func (s *transcriptStore) ListTranscripts(ctx context.Context, limit int) ([]domain.Transcript, error) {
	return s.store.recentTranscripts(ctx, limit)
}

// recentTranscripts lists transcripts by creation time, newest first.
func (s *Store) recentTranscripts(ctx context.Context, limit int) ([]domain.Transcript, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transcriptColumns+" FROM transcripts t ORDER BY t.created_at DESC, t.seq DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying transcripts: %w", err)
	}
	return collectTranscripts(rows)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTranscript scans one row selected with transcriptColumns.
func scanTranscript(row rowScanner) (*domain.Transcript, error) {
	var t domain.Transcript
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&t.ID, &t.Title, &t.RawText, &t.CleanedText, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning transcript: %w", err)
	}
	if createdAt.Valid {
		t.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		t.UpdatedAt = updatedAt.Time
	}
	return &t, nil
}

// collectTranscripts drains and closes rows.
func collectTranscripts(rows *sql.Rows) ([]domain.Transcript, error) {
	defer rows.Close()

	var out []domain.Transcript //nolint:prealloc // size unknown from query
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transcripts: %w", err)
	}
	return out, nil
}

// ==================== Message Store ====================

// messageStore implements driven.MessageStore.
type messageStore struct {
	store *Store
}

var _ driven.MessageStore = (*messageStore)(nil)

// AddMessage appends a conversation turn.
func (s *messageStore) AddMessage(ctx context.Context, m *domain.Message) error {
	if m == nil || m.TranscriptID == "" {
		return domain.ErrInvalidInput
	}
	if !m.Role.IsValid() {
		return domain.ErrInvalidRole
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	result, err := s.store.db.ExecContext(ctx, `
		INSERT INTO chat_messages (transcript_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, m.TranscriptID, string(m.Role), m.Content, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading message id: %w", err)
	}
	m.ID = id
	return nil
}

// ListMessages returns a transcript's turns oldest first.
func (s *messageStore) ListMessages(ctx context.Context, transcriptID string) ([]domain.Message, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, transcript_id, role, content, created_at
		FROM chat_messages WHERE transcript_id = ?
		ORDER BY id ASC
	`, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message //nolint:prealloc // size unknown from query
	for rows.Next() {
		var m domain.Message
		var role string
		var createdAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.TranscriptID, &role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = domain.Role(role)
		if createdAt.Valid {
			m.CreatedAt = createdAt.Time
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}
