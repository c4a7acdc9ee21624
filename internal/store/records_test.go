package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compscan-engine/internal/domain"
	"compscan-engine/internal/extract"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db.Pool))
	return db.Pool
}

func testRecord(replyIndex int, salary float64, role string) domain.Record {
	fields := map[domain.FieldKind]domain.ExtractedField{}
	if salary > 0 {
		fields[domain.KindSalary] = domain.ExtractedField{
			Kind:   domain.KindSalary,
			Span:   domain.Span{Start: 5, End: 8},
			Text:   "80k",
			Amount: salary,
			Unit:   extract.UnitAnnual,
		}
	}
	if role != "" {
		fields[domain.KindRole] = domain.ExtractedField{
			Kind:  domain.KindRole,
			Span:  domain.Span{Start: 10, End: 10 + len(role)},
			Text:  role,
			Label: role,
		}
	}
	return domain.Record{
		ReplyIndex: replyIndex,
		BatchID:    "batch-1",
		Fields:     fields,
		Excerpt:    "test excerpt",
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	var v int
	require.NoError(t, db.QueryRow(`PRAGMA user_version;`).Scan(&v))
	assert.Equal(t, 1, v)
}

func TestAppendRecord_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := testRecord(3, 95000, "Supply Chain Analyst")
	id, err := AppendRecord(ctx, db, rec)
	require.NoError(t, err)
	require.Positive(t, id)

	row, err := GetRecord(ctx, db, id)
	require.NoError(t, err)

	assert.Equal(t, 3, row.ReplyIndex)
	assert.Equal(t, "batch-1", row.BatchID)
	require.NotNil(t, row.Salary)
	assert.Equal(t, float64(95000), *row.Salary)
	assert.Equal(t, extract.UnitAnnual, row.SalaryUnit)
	require.NotNil(t, row.Role)
	assert.Equal(t, "Supply Chain Analyst", *row.Role)
	assert.Nil(t, row.Location)
	assert.Nil(t, row.ExperienceYears)
	assert.False(t, row.Stale)
	assert.NotEmpty(t, row.CreatedAt)

	// provenance spans survive the round trip
	sp, ok := row.Spans[string(domain.KindSalary)]
	require.True(t, ok)
	assert.Equal(t, 5, sp.Start)
	assert.Equal(t, 8, sp.End)
	assert.Equal(t, "80k", sp.Text)
}

func TestAppendRecord_MissingFieldsStayNull(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// role only; salary was unparseable and dropped upstream
	id, err := AppendRecord(ctx, db, testRecord(0, 0, "Planner"))
	require.NoError(t, err)

	row, err := GetRecord(ctx, db, id)
	require.NoError(t, err)
	assert.Nil(t, row.Salary, "missing salary stored as NULL, not zero")
	require.NotNil(t, row.Role)
	assert.Equal(t, "Planner", *row.Role)
}

func TestAppendMany_PreservesInputOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	recs := []domain.Record{
		testRecord(0, 80000, "Senior Planner"),
		testRecord(2, 0, "Analyst"),
		testRecord(5, 110000, ""),
	}

	ids, err := AppendMany(ctx, db, recs)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])

	rows, err := ListRecords(ctx, db, ListRecordsOpts{Sort: "id"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 0, rows[0].ReplyIndex)
	assert.Equal(t, 2, rows[1].ReplyIndex)
	assert.Equal(t, 5, rows[2].ReplyIndex)
}

func TestAppendMany_Empty(t *testing.T) {
	db := openTestDB(t)

	ids, err := AppendMany(context.Background(), db, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestListRecords_SortAndOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := AppendMany(ctx, db, []domain.Record{
		testRecord(0, 120000, ""),
		testRecord(1, 80000, ""),
		testRecord(2, 95000, ""),
	})
	require.NoError(t, err)

	rows, err := ListRecords(ctx, db, ListRecordsOpts{Sort: "salary", Order: "desc"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, float64(120000), *rows[0].Salary)
	assert.Equal(t, float64(95000), *rows[1].Salary)
	assert.Equal(t, float64(80000), *rows[2].Salary)

	// unknown sort keys fall back to id rather than erroring
	rows, err = ListRecords(ctx, db, ListRecordsOpts{Sort: "drop table"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 0, rows[0].ReplyIndex)
}

func TestSupersede_MarksPriorStale(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	staleID, err := AppendRecord(ctx, db, testRecord(4, 80000, "Planner"))
	require.NoError(t, err)

	newID, err := Supersede(ctx, db, staleID, testRecord(4, 85000, "Senior Planner"))
	require.NoError(t, err)
	require.NotEqual(t, staleID, newID)

	old, err := GetRecord(ctx, db, staleID)
	require.NoError(t, err)
	assert.True(t, old.Stale)
	require.NotNil(t, old.Salary)
	assert.Equal(t, float64(80000), *old.Salary, "superseded row kept intact")

	cur, err := GetRecord(ctx, db, newID)
	require.NoError(t, err)
	assert.False(t, cur.Stale)
	assert.Equal(t, staleID, cur.Supersedes)

	// default listing hides stale rows; IncludeStale shows history
	rows, err := ListRecords(ctx, db, ListRecordsOpts{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, newID, rows[0].ID)

	rows, err = ListRecords(ctx, db, ListRecordsOpts{IncludeStale: true})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestGetRecord_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetRecord(context.Background(), db, 999)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPruneStaleRecords_KeepsFreshRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	staleID, err := AppendRecord(ctx, db, testRecord(0, 80000, ""))
	require.NoError(t, err)
	_, err = Supersede(ctx, db, staleID, testRecord(0, 85000, ""))
	require.NoError(t, err)

	// just-superseded rows are inside the retention window
	n, err := PruneStaleRecords(db)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = db.Exec(`UPDATE records SET created_at = datetime('now','-4 months') WHERE id = ?;`, staleID)
	require.NoError(t, err)

	n, err = PruneStaleRecords(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
