package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/invoice"
)

const ledgerTable = "processed_files"

var ledgerDDL = []string{
	`CREATE TABLE IF NOT EXISTS processed_files (
		id VARCHAR(36) PRIMARY KEY,
		batch_id VARCHAR(36) NOT NULL,
		filename TEXT NOT NULL,
		path TEXT NOT NULL,
		content_hash VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		message TEXT NOT NULL,
		page_count INTEGER NOT NULL,
		record TEXT NOT NULL,
		processed_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS processed_files_hash_status ON processed_files (content_hash, status)`,
	`CREATE INDEX IF NOT EXISTS processed_files_processed_at ON processed_files (processed_at)`,
}

var ledgerColumns = []string{
	"id", "batch_id", "filename", "path", "content_hash", "status",
	"message", "page_count", "record", "processed_at",
}

// Entry is one processed file.
type Entry struct {
	ID          uuid.UUID
	BatchID     string
	Filename    string
	Path        string
	ContentHash string // sha256 hex
	Status      constants.Status
	Message     string
	PageCount   int
	Record      *invoice.Record // nil unless the file produced a row
	ProcessedAt time.Time
}

type LedgerRepository interface {
	Record(ctx context.Context, e *Entry) error
	SeenSuccess(ctx context.Context, contentHash string) (bool, error)
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

type ledgerRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewLedgerRepository(db *DB, logger *slog.Logger) LedgerRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ledgerRepo{db: db, logger: logger}
}

func (r *ledgerRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

// Record inserts e, filling ID and ProcessedAt when unset.
func (r *ledgerRepo) Record(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now()
	}
	recJSON := ""
	if e.Record != nil {
		b, err := json.Marshal(e.Record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		recJSON = string(b)
	}

	query, args := r.builder().Insert(ledgerTable).
		Columns(ledgerColumns...).
		Values(
			e.ID.String(), e.BatchID, e.Filename, e.Path, e.ContentHash, string(e.Status),
			e.Message, e.PageCount, recJSON, e.ProcessedAt.UnixMilli(),
		).Query()

	var res sql.Result
	if err := r.db.Driver.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("failed to record processed file", "filename", e.Filename, "batch_id", e.BatchID, "error", err)
		return common.DatabaseError("record processed file", err)
	}
	return nil
}

// SeenSuccess reports whether content with this hash was already recognized.
func (r *ledgerRepo) SeenSuccess(ctx context.Context, contentHash string) (bool, error) {
	query, args := r.builder().Select(entsql.Count("*")).
		From(r.builder().Table(ledgerTable)).
		Where(entsql.And(
			entsql.EQ("content_hash", contentHash),
			entsql.EQ("status", string(constants.StatusSuccess)),
		)).Query()

	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		r.logger.Error("failed to query ledger by hash", "content_hash", contentHash, "error", err)
		return false, common.DatabaseError("query ledger by hash", err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return false, err
		}
	}
	return n > 0, rows.Err()
}

// Recent lists the newest entries first.
func (r *ledgerRepo) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args := r.builder().Select(ledgerColumns...).
		From(r.builder().Table(ledgerTable)).
		OrderBy(entsql.Desc("processed_at"), entsql.Desc("id")).
		Limit(limit).
		Query()

	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		r.logger.Error("failed to list ledger", "error", err)
		return nil, common.DatabaseError("list ledger", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			id        string
			status    string
			pageCount int64
			recJSON   string
			processed int64
		)
		if err := rows.Scan(&id, &e.BatchID, &e.Filename, &e.Path, &e.ContentHash, &status,
			&e.Message, &pageCount, &recJSON, &processed); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("ledger row id %q: %w", id, err)
		}
		e.ID = parsed
		e.Status = constants.Status(status)
		e.PageCount = int(pageCount)
		e.ProcessedAt = time.UnixMilli(processed)
		if recJSON != "" {
			var rec invoice.Record
			if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
				return nil, fmt.Errorf("ledger row %s record: %w", id, err)
			}
			e.Record = &rec
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
