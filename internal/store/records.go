package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"compscan-engine/internal/domain"
	"compscan-engine/internal/extract"
)

// Row is one persisted record, shaped for the read path. Every column
// except id/reply_index is nullable: a record only carries the fields
// its reply actually yielded.
type Row struct {
	ID              int64               `json:"id"`
	BatchID         string              `json:"batch_id,omitempty"`
	ReplyIndex      int                 `json:"reply_index"`
	Salary          *float64            `json:"salary"`
	SalaryUnit      string              `json:"salary_unit,omitempty"`
	Role            *string             `json:"role"`
	Location        *string             `json:"location"`
	ExperienceYears *float64            `json:"experience_years"`
	ExperienceBand  *string             `json:"experience_band"`
	Spans           map[string]SpanInfo `json:"spans,omitempty"`
	Excerpt         string              `json:"excerpt,omitempty"`
	Stale           bool                `json:"stale"`
	Supersedes      int64               `json:"supersedes,omitempty"`
	CreatedAt       string              `json:"created_at"`
}

// SpanInfo is the provenance marker persisted per field: which span of
// the originating reply the value was derived from.
type SpanInfo struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text,omitempty"`
}

type ListRecordsOpts struct {
	Sort         string // id | reply | salary | created
	Order        string // asc | desc
	Window       string // 24h | 7d | all
	Limit        int
	IncludeStale bool
}

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1 ----

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  batch_id TEXT NOT NULL DEFAULT '',
  reply_index INTEGER NOT NULL,
  salary REAL,
  salary_unit TEXT,
  role TEXT,
  location TEXT,
  experience_years REAL,
  experience_band TEXT,
  spans TEXT NOT NULL DEFAULT '{}',
  excerpt TEXT NOT NULL DEFAULT '',
  stale INTEGER NOT NULL DEFAULT 0,
  supersedes INTEGER,
  created_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_records_created_at
ON records(created_at);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_records_batch_id
ON records(batch_id)
WHERE batch_id != '';
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}

const insertRecordSQL = `
INSERT INTO records (batch_id, reply_index, salary, salary_unit, role, location,
                     experience_years, experience_band, spans, excerpt, supersedes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

// AppendRecord appends one record. Append is the only mutation; the
// order of appends defines the table's iteration order. Duplicate reply
// indexes are permitted; dedup is the caller's concern.
func AppendRecord(ctx context.Context, db *sql.DB, rec domain.Record) (int64, error) {
	p := insertParams(rec, 0)
	res, err := db.ExecContext(ctx, insertRecordSQL, p...)
	if err != nil {
		return 0, fmt.Errorf("%w: append record reply=%d: %v", domain.ErrStorageUnavailable, rec.ReplyIndex, err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// AppendMany appends a batch inside one transaction, preserving input
// order. This is the pipeline's single serialization point.
func AppendMany(ctx context.Context, db *sql.DB, recs []domain.Record) ([]int64, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin append batch: %v", domain.ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: prepare append: %v", domain.ErrStorageUnavailable, err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		res, err := stmt.ExecContext(ctx, insertParams(rec, 0)...)
		if err != nil {
			return nil, fmt.Errorf("%w: append record reply=%d: %v", domain.ErrStorageUnavailable, rec.ReplyIndex, err)
		}
		id, _ := res.LastInsertId()
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit append batch: %v", domain.ErrStorageUnavailable, err)
	}
	return ids, nil
}

// Supersede appends a correction record and marks the prior row stale.
// Rows are never updated in place.
func Supersede(ctx context.Context, db *sql.DB, staleID int64, rec domain.Record) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin supersede: %v", domain.ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, insertRecordSQL, insertParams(rec, staleID)...)
	if err != nil {
		return 0, fmt.Errorf("%w: append superseding record: %v", domain.ErrStorageUnavailable, err)
	}
	id, _ := res.LastInsertId()

	if _, err := tx.ExecContext(ctx, `UPDATE records SET stale = 1 WHERE id = ?;`, staleID); err != nil {
		return 0, fmt.Errorf("%w: mark record %d stale: %v", domain.ErrStorageUnavailable, staleID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit supersede: %v", domain.ErrStorageUnavailable, err)
	}
	return id, nil
}

func insertParams(rec domain.Record, supersedes int64) []any {
	var (
		salary, expYears  sql.NullFloat64
		salaryUnit, role  sql.NullString
		location, expBand sql.NullString
		supersedesCol     sql.NullInt64
	)
	spans := make(map[string]SpanInfo, len(rec.Fields))

	if f, ok := rec.Field(domain.KindSalary); ok {
		salary = sql.NullFloat64{Float64: f.Amount, Valid: true}
		salaryUnit = sql.NullString{String: f.Unit, Valid: true}
		spans[string(domain.KindSalary)] = spanInfo(f)
	}
	if f, ok := rec.Field(domain.KindRole); ok {
		role = sql.NullString{String: f.Label, Valid: true}
		spans[string(domain.KindRole)] = spanInfo(f)
	}
	if f, ok := rec.Field(domain.KindLocation); ok {
		location = sql.NullString{String: f.Label, Valid: true}
		spans[string(domain.KindLocation)] = spanInfo(f)
	}
	if f, ok := rec.Field(domain.KindExperience); ok {
		if f.Unit == extract.UnitYears {
			expYears = sql.NullFloat64{Float64: f.Amount, Valid: true}
		}
		if f.Label != "" {
			expBand = sql.NullString{String: f.Label, Valid: true}
		}
		spans[string(domain.KindExperience)] = spanInfo(f)
	}
	if supersedes > 0 {
		supersedesCol = sql.NullInt64{Int64: supersedes, Valid: true}
	}

	spansJSON, _ := json.Marshal(spans)

	return []any{
		rec.BatchID, rec.ReplyIndex, salary, salaryUnit, role, location,
		expYears, expBand, string(spansJSON), rec.Excerpt, supersedesCol,
		time.Now().UTC().Format(time.RFC3339),
	}
}

func spanInfo(f domain.ExtractedField) SpanInfo {
	return SpanInfo{Start: f.Span.Start, End: f.Span.End, Text: f.Text}
}

func ListRecords(ctx context.Context, db *sql.DB, opts ListRecordsOpts) ([]Row, error) {
	if opts.Sort == "" {
		opts.Sort = "id"
	}
	if opts.Window == "" {
		opts.Window = "all"
	}
	if opts.Limit <= 0 || opts.Limit > 100000 {
		opts.Limit = 10000
	}

	// whitelist sort columns (prevents SQL injection)
	sortCol := map[string]string{
		"id":      "id",
		"reply":   "reply_index",
		"salary":  "salary",
		"created": "created_at",
	}[opts.Sort]
	if sortCol == "" {
		sortCol = "id"
	}
	order := "ASC"
	if opts.Order == "desc" {
		order = "DESC"
	}

	where := ""
	switch opts.Window {
	case "24h":
		where = "WHERE created_at >= datetime('now','-24 hours')"
	case "7d":
		where = "WHERE created_at >= datetime('now','-7 days')"
	default:
		// no time filter
	}
	if !opts.IncludeStale {
		if where == "" {
			where = "WHERE stale = 0"
		} else {
			where += " AND stale = 0"
		}
	}

	query := fmt.Sprintf(`
SELECT id, batch_id, reply_index, salary, salary_unit, role, location,
       experience_years, experience_band, spans, excerpt, stale, supersedes, created_at
FROM records
%s
ORDER BY %s %s
LIMIT ?;
`, where, sortCol, order)

	rows, err := db.QueryContext(ctx, query, opts.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func GetRecord(ctx context.Context, db *sql.DB, id int64) (Row, error) {
	rows, err := db.QueryContext(ctx, `
SELECT id, batch_id, reply_index, salary, salary_unit, role, location,
       experience_years, experience_band, spans, excerpt, stale, supersedes, created_at
FROM records
WHERE id = ?
LIMIT 1;`, id)
	if err != nil {
		return Row{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Row{}, err
		}
		return Row{}, sql.ErrNoRows
	}
	return scanRow(rows)
}

func scanRow(rows *sql.Rows) (Row, error) {
	var (
		r          Row
		salary     sql.NullFloat64
		salaryUnit sql.NullString
		role       sql.NullString
		location   sql.NullString
		expYears   sql.NullFloat64
		expBand    sql.NullString
		spansJSON  string
		stale      int
		supersedes sql.NullInt64
	)

	if err := rows.Scan(
		&r.ID, &r.BatchID, &r.ReplyIndex,
		&salary, &salaryUnit, &role, &location,
		&expYears, &expBand,
		&spansJSON, &r.Excerpt, &stale, &supersedes, &r.CreatedAt,
	); err != nil {
		return Row{}, err
	}

	if salary.Valid {
		r.Salary = &salary.Float64
	}
	r.SalaryUnit = salaryUnit.String
	if role.Valid {
		r.Role = &role.String
	}
	if location.Valid {
		r.Location = &location.String
	}
	if expYears.Valid {
		r.ExperienceYears = &expYears.Float64
	}
	if expBand.Valid {
		r.ExperienceBand = &expBand.String
	}
	r.Stale = stale != 0
	if supersedes.Valid {
		r.Supersedes = supersedes.Int64
	}
	_ = json.Unmarshal([]byte(spansJSON), &r.Spans)

	return r, nil
}

// PruneStaleRecords drops superseded rows old enough that no reader
// still needs them for audit.
func PruneStaleRecords(db *sql.DB) (deleted int64, err error) {
	res, err := db.Exec(`
DELETE FROM records
WHERE stale = 1
  AND created_at < datetime('now', '-3 months');
`)
	if err != nil {
		return 0, fmt.Errorf("prune stale records: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
