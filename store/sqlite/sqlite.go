/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.Repository and trips.ProjectStore using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on ledger_entries, ever.
  - No per-row DELETE on ledger_entries; the only bulk rewrite is
    ReplaceAllEntries, which exists for migration/reset flows.
  - Corrections and deletions are new AMEND/VOID rows written by the
    ledger service.

ORDERING:
  The seq column (AUTOINCREMENT) records append order. Every entry read
  orders by seq, so AppendEntries preserves caller order on read-back.
  Batch appends run inside one SQL transaction: all rows land or none do.

KEY TABLES:
  ledger_entries:  immutable per-user hash chain
  ledger_batches:  one summary row per bulk import
  projects:        trip/document grouping
  documents:       metadata for files held in external object storage

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  one writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/trips.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ledger.NewService(store, "user-1")
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/driveline/trip-ledger/ledger"
	"github.com/driveline/trip-ledger/trips"
)

// Store implements ledger.Repository and trips.ProjectStore using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Ledger entries (append-only hash chain, one chain per user)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		hash TEXT NOT NULL,
		previous_hash TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		operation TEXT NOT NULL,
		source TEXT NOT NULL,
		trip_id TEXT NOT NULL,
		trip_snapshot TEXT NOT NULL,
		batch_id TEXT NOT NULL DEFAULT '',
		correction_reason TEXT NOT NULL DEFAULT '',
		changed_fields TEXT NOT NULL DEFAULT 'null',
		void_reason TEXT NOT NULL DEFAULT '',
		previous_snapshot TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_entries_user_seq
		ON ledger_entries(user_id, seq);
	CREATE INDEX IF NOT EXISTS idx_entries_user_batch
		ON ledger_entries(user_id, batch_id) WHERE batch_id != '';
	CREATE INDEX IF NOT EXISTS idx_entries_user_trip
		ON ledger_entries(user_id, trip_id);

	-- Batch summaries (written once per bulk import, never mutated)
	CREATE TABLE IF NOT EXISTS ledger_batches (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		source TEXT NOT NULL,
		entry_count INTEGER NOT NULL,
		first_entry_hash TEXT NOT NULL,
		last_entry_hash TEXT NOT NULL,
		source_documents TEXT NOT NULL DEFAULT 'null'
	);

	CREATE INDEX IF NOT EXISTS idx_batches_user
		ON ledger_batches(user_id);

	-- Projects
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_user
		ON projects(user_id);

	-- Document metadata (file bytes live in external object storage)
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		project_id TEXT NOT NULL DEFAULT '',
		trip_id TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_user_trip
		ON documents(user_id, trip_id);
	CREATE INDEX IF NOT EXISTS idx_documents_user_project
		ON documents(user_id, project_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER REPOSITORY
// =============================================================================

const entryColumns = `id, user_id, hash, previous_hash, timestamp, operation, source,
	trip_id, trip_snapshot, batch_id, correction_reason, changed_fields,
	void_reason, previous_snapshot`

func (s *Store) GetEntries(ctx context.Context, userID ledger.UserID) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE user_id = ? ORDER BY seq`,
		string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) AppendEntry(ctx context.Context, userID ledger.UserID, entry ledger.Entry) error {
	return s.AppendEntries(ctx, userID, []ledger.Entry{entry})
}

// AppendEntries writes all entries in caller order inside one transaction.
func (s *Store) AppendEntries(ctx context.Context, userID ledger.UserID, entries []ledger.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range entries {
		if err := insertEntry(ctx, tx, userID, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) CreateBatchRecord(ctx context.Context, userID ledger.UserID, batch ledger.Batch) error {
	docs, err := json.Marshal(batch.SourceDocuments)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_batches
			(id, user_id, timestamp, source, entry_count, first_entry_hash, last_entry_hash, source_documents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(batch.ID), string(userID), batch.Timestamp.UTC().Format(time.RFC3339Nano),
		string(batch.Source), batch.EntryCount, batch.FirstEntryHash, batch.LastEntryHash,
		string(docs))
	return err
}

func (s *Store) GetEntriesByBatch(ctx context.Context, userID ledger.UserID, batchID ledger.BatchID) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE user_id = ? AND batch_id = ? ORDER BY seq`,
		string(userID), string(batchID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) GetBatches(ctx context.Context, userID ledger.UserID) ([]ledger.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, timestamp, source, entry_count, first_entry_hash, last_entry_hash, source_documents
		FROM ledger_batches WHERE user_id = ? ORDER BY timestamp`,
		string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []ledger.Batch
	for rows.Next() {
		var b ledger.Batch
		var id, uid, ts, source, docs string
		if err := rows.Scan(&id, &uid, &ts, &source, &b.EntryCount, &b.FirstEntryHash, &b.LastEntryHash, &docs); err != nil {
			return nil, err
		}
		b.ID = ledger.BatchID(id)
		b.UserID = ledger.UserID(uid)
		b.Source = ledger.Source(source)
		var err error
		if b.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("corrupt batch timestamp %q: %w", ts, err)
		}
		if err := json.Unmarshal([]byte(docs), &b.SourceDocuments); err != nil {
			return nil, fmt.Errorf("corrupt batch source documents: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// ReplaceAllEntries rewrites a user's whole log. Migration/reset flows only;
// this is the single code path allowed to remove ledger rows.
func (s *Store) ReplaceAllEntries(ctx context.Context, userID ledger.UserID, entries []ledger.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE user_id = ?`, string(userID)); err != nil {
		return err
	}
	for _, e := range entries {
		if err := insertEntry(ctx, tx, userID, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertEntry(ctx context.Context, tx *sql.Tx, userID ledger.UserID, e ledger.Entry) error {
	snapshot, err := json.Marshal(e.TripSnapshot)
	if err != nil {
		return err
	}
	changed, err := json.Marshal(e.ChangedFields)
	if err != nil {
		return err
	}
	previous := ""
	if e.PreviousSnapshot != nil {
		raw, err := json.Marshal(e.PreviousSnapshot)
		if err != nil {
			return err
		}
		previous = string(raw)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries
			(`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), string(userID), e.Hash, e.PreviousHash,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(e.Operation), string(e.Source), string(e.TripID),
		string(snapshot), string(e.BatchID), e.CorrectionReason,
		string(changed), e.VoidReason, previous)
	return err
}

func scanEntries(rows *sql.Rows) ([]ledger.Entry, error) {
	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var id, uid, ts, op, source, tripID, snapshot, batchID, changed, previous string
		if err := rows.Scan(&id, &uid, &e.Hash, &e.PreviousHash, &ts, &op, &source,
			&tripID, &snapshot, &batchID, &e.CorrectionReason, &changed,
			&e.VoidReason, &previous); err != nil {
			return nil, err
		}
		e.ID = ledger.EntryID(id)
		e.UserID = ledger.UserID(uid)
		e.Operation = ledger.Operation(op)
		e.Source = ledger.Source(source)
		e.TripID = ledger.TripID(tripID)
		e.BatchID = ledger.BatchID(batchID)

		var err error
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("corrupt entry timestamp %q: %w", ts, err)
		}
		if err := json.Unmarshal([]byte(snapshot), &e.TripSnapshot); err != nil {
			return nil, fmt.Errorf("corrupt trip snapshot for entry %s: %w", id, err)
		}
		if err := json.Unmarshal([]byte(changed), &e.ChangedFields); err != nil {
			return nil, fmt.Errorf("corrupt changed fields for entry %s: %w", id, err)
		}
		if previous != "" {
			var prev ledger.Trip
			if err := json.Unmarshal([]byte(previous), &prev); err != nil {
				return nil, fmt.Errorf("corrupt previous snapshot for entry %s: %w", id, err)
			}
			e.PreviousSnapshot = &prev
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// PROJECT STORE
// =============================================================================

func (s *Store) SaveProject(ctx context.Context, p trips.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, user_id, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		string(p.ID), string(p.UserID), p.Name, p.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) GetProject(ctx context.Context, userID ledger.UserID, id ledger.ProjectID) (*trips.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE user_id = ? AND id = ?`,
		string(userID), string(id))
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context, userID ledger.UserID) ([]trips.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE user_id = ? ORDER BY created_at`,
		string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []trips.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (s *Store) DeleteProject(ctx context.Context, userID ledger.UserID, id ledger.ProjectID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM projects WHERE user_id = ? AND id = ?`,
		string(userID), string(id))
	return err
}

func (s *Store) SaveDocument(ctx context.Context, d trips.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, project_id, trip_id, kind, name, storage_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, string(d.UserID), string(d.ProjectID), string(d.TripID),
		string(d.Kind), d.Name, d.StorageKey, d.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) GetDocument(ctx context.Context, userID ledger.UserID, id string) (*trips.Document, error) {
	docs, err := s.listDocuments(ctx,
		`SELECT id, user_id, project_id, trip_id, kind, name, storage_key, created_at
		 FROM documents WHERE user_id = ? AND id = ?`,
		string(userID), id)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

func (s *Store) ListDocumentsByTrip(ctx context.Context, userID ledger.UserID, tripID ledger.TripID) ([]trips.Document, error) {
	return s.listDocuments(ctx,
		`SELECT id, user_id, project_id, trip_id, kind, name, storage_key, created_at
		 FROM documents WHERE user_id = ? AND trip_id = ? ORDER BY created_at`,
		string(userID), string(tripID))
}

func (s *Store) ListDocumentsByProject(ctx context.Context, userID ledger.UserID, projectID ledger.ProjectID) ([]trips.Document, error) {
	return s.listDocuments(ctx,
		`SELECT id, user_id, project_id, trip_id, kind, name, storage_key, created_at
		 FROM documents WHERE user_id = ? AND project_id = ? ORDER BY created_at`,
		string(userID), string(projectID))
}

func (s *Store) DeleteDocument(ctx context.Context, userID ledger.UserID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE user_id = ? AND id = ?`,
		string(userID), id)
	return err
}

func (s *Store) listDocuments(ctx context.Context, query string, args ...any) ([]trips.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []trips.Document
	for rows.Next() {
		var d trips.Document
		var uid, projectID, tripID, kind, createdAt string
		if err := rows.Scan(&d.ID, &uid, &projectID, &tripID, &kind, &d.Name, &d.StorageKey, &createdAt); err != nil {
			return nil, err
		}
		d.UserID = ledger.UserID(uid)
		d.ProjectID = ledger.ProjectID(projectID)
		d.TripID = ledger.TripID(tripID)
		d.Kind = trips.DocumentKind(kind)
		if d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("corrupt document timestamp %q: %w", createdAt, err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*trips.Project, error) {
	var p trips.Project
	var id, uid, createdAt string
	if err := row.Scan(&id, &uid, &p.Name, &createdAt); err != nil {
		return nil, err
	}
	p.ID = ledger.ProjectID(id)
	p.UserID = ledger.UserID(uid)
	var err error
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt project timestamp %q: %w", createdAt, err)
	}
	return &p, nil
}
