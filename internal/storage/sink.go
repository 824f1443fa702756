// Package storage is the Persistence Layer (§4.10): an embedded SQLite
// store with pooled connections, idempotent upsert-by-URL, and batched
// transactional writes, plus a parallel per-crawl history table.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mascanho/seocrawl/internal/crawl"
	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/pkg/failure"
)

const (
	MaxConnections        = 16
	ConnectionAcquireWait = 60 * time.Second
	ConnectionMaxLifetime = 30 * time.Minute
	ConnectionIdleTimeout = 5 * time.Minute

	// DefaultBatchSize is DB_BATCH_SIZE: the Scheduler flushes its
	// in-memory PageRecord batch once it reaches this many entries.
	DefaultBatchSize = 100
)

// Sink is what the Scheduler writes PageRecords through. Defined as an
// interface so a test double can stand in without a real database.
type Sink interface {
	Upsert(ctx context.Context, record crawl.PageRecord) (WriteResult, failure.ClassifiedError)
	Flush(ctx context.Context, records []crawl.PageRecord) ([]WriteResult, failure.ClassifiedError)
}

// Store is the SQLite-backed implementation. Initialization is explicit
// and idempotent: callers must call Initialize before any read/write, and
// Clear requires that Initialize already ran.
type Store struct {
	db           *sql.DB
	metadataSink metadata.MetadataSink

	mu          sync.Mutex
	initialized bool
}

func Open(dsn string, metadataSink metadata.MetadataSink) (*Store, failure.ClassifiedError) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseConnectionFailed}
	}
	db.SetMaxOpenConns(MaxConnections)
	db.SetConnMaxLifetime(ConnectionMaxLifetime)
	db.SetConnMaxIdleTime(ConnectionIdleTimeout)

	return &Store{db: db, metadataSink: metadataSink}, nil
}

// Initialize creates the domain_crawl table (plus its url index), the
// deep_crawls_history table, and the custom_search table if they don't
// already exist, then flips the initialized flag under lock. Safe to call
// more than once; later calls are no-ops once initialized is true.
func (s *Store) Initialize(ctx context.Context) failure.ClassifiedError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	acquireCtx, cancel := context.WithTimeout(ctx, ConnectionAcquireWait)
	defer cancel()

	_, err := s.db.ExecContext(acquireCtx, `
		CREATE TABLE IF NOT EXISTS domain_crawl (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL UNIQUE,
			data TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_domain_crawl_url ON domain_crawl(url);

		CREATE TABLE IF NOT EXISTS deep_crawls_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			domain TEXT NOT NULL,
			date TEXT NOT NULL,
			pages INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			status TEXT NOT NULL,
			total_links INTEGER NOT NULL,
			total_internal_links INTEGER NOT NULL,
			total_external_links INTEGER NOT NULL,
			indexable_pages INTEGER NOT NULL,
			not_indexable_pages INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS custom_search (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			selector TEXT NOT NULL,
			search_text TEXT NOT NULL
		);
	`)
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
	}

	if _, err := s.db.ExecContext(acquireCtx, "PRAGMA journal_mode=WAL"); err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseConnectionFailed}
	}
	if _, err := s.db.ExecContext(acquireCtx, "PRAGMA synchronous=NORMAL"); err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseConnectionFailed}
	}

	s.initialized = true
	return nil
}

// Clear empties the domain_crawl table. Requires Initialize to have run.
func (s *Store) Clear(ctx context.Context) failure.ClassifiedError {
	s.mu.Lock()
	initialized := s.initialized
	s.mu.Unlock()
	if !initialized {
		return &StorageError{Message: "Clear called before Initialize", Retryable: false, Cause: ErrCauseNotInitialized}
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM domain_crawl"); err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
	}
	return nil
}

// Upsert writes a single PageRecord, keyed by FinalURL. Prefer Flush for
// batches; Upsert is for the rare out-of-band single write.
func (s *Store) Upsert(ctx context.Context, record crawl.PageRecord) (WriteResult, failure.ClassifiedError) {
	data, err := json.Marshal(record)
	if err != nil {
		cerr := &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseSerializeFailure}
		s.recordError("Store.Upsert", cerr, record.FinalURL)
		return WriteResult{}, cerr
	}

	var one int
	existed := s.db.QueryRowContext(ctx, "SELECT 1 FROM domain_crawl WHERE url = ?", record.FinalURL).Scan(&one) == nil

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO domain_crawl (url, data) VALUES (?, ?)",
		record.FinalURL, string(data))
	if err != nil {
		cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
		s.recordError("Store.Upsert", cerr, record.FinalURL)
		return WriteResult{}, cerr
	}

	s.metadataSink.RecordArtifact(metadata.ArtifactPageRecord, record.FinalURL, nil)
	return NewWriteResult(record.FinalURL, existed), nil
}

// Flush writes every record in a single transaction: begin, prepare one
// upsert statement, execute it per entry, commit. On commit failure the
// whole batch is reported failed; the caller (the Scheduler) surfaces this
// without aborting the crawl — a persistence hiccup is not a reason to
// stop discovering and fetching pages.
func (s *Store) Flush(ctx context.Context, records []crawl.PageRecord) ([]WriteResult, failure.ClassifiedError) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseConnectionFailed}
		s.recordError("Store.Flush", cerr, "")
		return nil, cerr
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO domain_crawl (url, data) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
		s.recordError("Store.Flush", cerr, "")
		return nil, cerr
	}
	defer stmt.Close()

	results := make([]WriteResult, 0, len(records))
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			tx.Rollback()
			cerr := &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseSerializeFailure}
			s.recordError("Store.Flush", cerr, record.FinalURL)
			return nil, cerr
		}
		var one int
		existed := tx.QueryRowContext(ctx, "SELECT 1 FROM domain_crawl WHERE url = ?", record.FinalURL).Scan(&one) == nil
		if _, err := stmt.ExecContext(ctx, record.FinalURL, string(data)); err != nil {
			tx.Rollback()
			cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
			s.recordError("Store.Flush", cerr, record.FinalURL)
			return nil, cerr
		}
		results = append(results, NewWriteResult(record.FinalURL, existed))
	}

	if err := tx.Commit(); err != nil {
		cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
		s.recordError("Store.Flush", cerr, "")
		return nil, cerr
	}

	for _, r := range results {
		s.metadataSink.RecordArtifact(metadata.ArtifactPageRecord, r.URL(), nil)
	}
	return results, nil
}

// LoadAll returns every persisted PageRecord, used by the Diff Engine to
// read a prior crawl's store.
func (s *Store) LoadAll(ctx context.Context) ([]crawl.PageRecord, failure.ClassifiedError) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM domain_crawl")
	if err != nil {
		cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
		s.recordError("Store.LoadAll", cerr, "")
		return nil, cerr
	}
	defer rows.Close()

	var records []crawl.PageRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			cerr := &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseQueryFailure}
			s.recordError("Store.LoadAll", cerr, "")
			return nil, cerr
		}
		var record crawl.PageRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			cerr := &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseSerializeFailure}
			s.recordError("Store.LoadAll", cerr, "")
			return nil, cerr
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
		s.recordError("Store.LoadAll", cerr, "")
		return nil, cerr
	}
	return records, nil
}

// GetByURL reads a single persisted PageRecord by its stored key, used by
// the "page" UI command to answer read-one-url lookups without loading the
// whole table. The second return is false when no row matches url.
func (s *Store) GetByURL(ctx context.Context, url string) (crawl.PageRecord, bool, failure.ClassifiedError) {
	row := s.db.QueryRowContext(ctx, "SELECT data FROM domain_crawl WHERE url = ?", url)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return crawl.PageRecord{}, false, nil
		}
		cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
		s.recordError("Store.GetByURL", cerr, url)
		return crawl.PageRecord{}, false, cerr
	}

	var record crawl.PageRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		cerr := &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseSerializeFailure}
		s.recordError("Store.GetByURL", cerr, url)
		return crawl.PageRecord{}, false, cerr
	}
	return record, true, nil
}

// RecordCrawlHistory appends one summary row to deep_crawls_history.
func (s *Store) RecordCrawlHistory(ctx context.Context, entry CrawlHistoryEntry) failure.ClassifiedError {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deep_crawls_history (
			domain, date, pages, errors, status, total_links,
			total_internal_links, total_external_links, indexable_pages, not_indexable_pages
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Domain, entry.Date.Format(time.RFC3339), entry.Pages, entry.Errors, entry.Status,
		entry.TotalLinks, entry.TotalInternalLinks, entry.TotalExternalLinks,
		entry.IndexablePages, entry.NotIndexablePages)
	if err != nil {
		cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
		s.recordError("Store.RecordCrawlHistory", cerr, entry.Domain)
		return cerr
	}
	return nil
}

// ReplaceCustomSearch replaces the single-row custom_search configuration:
// delete row id=1, then insert the new set. Mirrors the store's
// replace-not-merge convention for user-editable single-row config.
func (s *Store) ReplaceCustomSearch(ctx context.Context, configs []CustomSearchConfig) failure.ClassifiedError {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseConnectionFailed}
		s.recordError("Store.ReplaceCustomSearch", cerr, "")
		return cerr
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM custom_search WHERE id = 1"); err != nil {
		tx.Rollback()
		cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
		s.recordError("Store.ReplaceCustomSearch", cerr, "")
		return cerr
	}
	for _, cfg := range configs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO custom_search (id, type, selector, search_text) VALUES (1, ?, ?, ?)",
			cfg.Type, cfg.Selector, cfg.SearchText); err != nil {
			tx.Rollback()
			cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
			s.recordError("Store.ReplaceCustomSearch", cerr, "")
			return cerr
		}
	}
	if err := tx.Commit(); err != nil {
		cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
		s.recordError("Store.ReplaceCustomSearch", cerr, "")
		return cerr
	}
	return nil
}

// ClearCustomSearch deletes the single custom_search row.
func (s *Store) ClearCustomSearch(ctx context.Context) failure.ClassifiedError {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM custom_search WHERE id = 1"); err != nil {
		cerr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
		s.recordError("Store.ClearCustomSearch", cerr, "")
		return cerr
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) recordError(action string, err *StorageError, url string) {
	attrs := []metadata.Attribute{}
	if url != "" {
		attrs = append(attrs, metadata.NewAttr(metadata.AttrURL, url))
	}
	s.metadataSink.RecordError(time.Now(), "storage", action, mapStorageErrorToMetadataCause(err), err.Error(), attrs)
}
