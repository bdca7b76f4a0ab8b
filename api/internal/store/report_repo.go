package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = sql.ErrNoRows

// ReportRepo archives extracted accident reports so a re-uploaded document is not
// sent through OCR and the chat model again.
type ReportRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{DB: db, now: time.Now} }

// ReportRow is one archived extraction.
type ReportRow struct {
	ID           int64
	CreatedAt    time.Time
	DocumentHash string
	DocumentType string
	Model        string
	Filename     string
	OCRText      string
	Result       any
}

const reportSchema = `
create table if not exists report_extractions (
  id            bigserial primary key,
  created_at    timestamptz not null default now(),
  document_hash text not null,
  document_type text not null,
  model         text not null,
  filename      text not null default '',
  ocr_text      text not null default '',
  result_json   jsonb not null,
  unique (document_hash, document_type, model)
)`

func (r *ReportRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, reportSchema); err != nil {
		return fmt.Errorf("create report_extractions: %w", err)
	}
	return nil
}

// FindByHash returns the newest archived extraction for (hash, docType, model).
// With maxAge > 0 older rows count as missing.
func (r *ReportRepo) FindByHash(ctx context.Context, hash, docType, model string, maxAge time.Duration) (*ReportRow, error) {
	const q = `
select id, created_at, document_hash, document_type, model, filename, ocr_text, result_json
from report_extractions
where document_hash = $1 and document_type = $2 and model = $3
order by created_at desc
limit 1`
	var (
		row ReportRow
		js  []byte
	)
	err := r.DB.QueryRowContext(ctx, q, hash, docType, model).Scan(
		&row.ID, &row.CreatedAt, &row.DocumentHash, &row.DocumentType, &row.Model,
		&row.Filename, &row.OCRText, &js,
	)
	if err != nil {
		return nil, err
	}
	if maxAge > 0 && r.now().Sub(row.CreatedAt) > maxAge {
		return nil, ErrNotFound
	}
	if err := json.Unmarshal(js, &row.Result); err != nil {
		// a broken archive row is treated as a miss
		return nil, ErrNotFound
	}
	return &row, nil
}

// Save stores an extraction, replacing an earlier one for the same key.
func (r *ReportRepo) Save(ctx context.Context, row ReportRow) error {
	js, err := json.Marshal(row.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	const q = `
insert into report_extractions (document_hash, document_type, model, filename, ocr_text, result_json)
values ($1,$2,$3,$4,$5,$6)
on conflict (document_hash, document_type, model) do update
set created_at = now(),
    filename = excluded.filename,
    ocr_text = excluded.ocr_text,
    result_json = excluded.result_json`
	_, err = r.DB.ExecContext(ctx, q, row.DocumentHash, row.DocumentType, row.Model, row.Filename, row.OCRText, js)
	return err
}

// PurgeOlderThan drops archive rows older than olderThan.
func (r *ReportRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	const q = `delete from report_extractions where created_at < $1`
	res, err := r.DB.ExecContext(ctx, q, r.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
