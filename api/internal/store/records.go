package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"relief-bot/api/internal/commit"
	"relief-bot/api/internal/relief"
)

// Month is a partition of relief_records, formatted YYYY-MM.
type Month string

func (m Month) Name() string { return string(m) }

// RecordRepo is the SQL implementation of commit.TabularStore. Row position
// has no meaning in SQL; listing orders by submission time instead.
type RecordRepo struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewRecordRepo(db *sql.DB, d Dialect) *RecordRepo { return &RecordRepo{DB: db, Dialect: d} }

const schema = `
create table if not exists relief_records (
  id                 text primary key,
  month              text not null,
  submitted_at       text not null,
  record_date        text not null,
  time_slot          text not null,
  substitute_teacher text not null,
  absent_teacher     text not null,
  class_name         text not null,
  subject            text not null,
  image1_ref         text not null,
  image2_ref         text not null default '',
  created_at         timestamp not null default current_timestamp
)`

const monthIndex = `create index if not exists relief_records_month_idx on relief_records (month, submitted_at)`

// Migrate creates the table and index if they are missing.
func (r *RecordRepo) Migrate(ctx context.Context) error {
	for _, q := range []string{schema, monthIndex} {
		if _, err := r.DB.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *RecordRepo) Ping(ctx context.Context) error { return r.DB.PingContext(ctx) }

func (r *RecordRepo) SelectPartition(_ context.Context, date time.Time) (commit.Partition, error) {
	return Month(date.Format("2006-01")), nil
}

func (r *RecordRepo) Append(ctx context.Context, p commit.Partition, values []any) error {
	return r.insert(ctx, p, values)
}

// InsertAt stores the row; index is ignored.
func (r *RecordRepo) InsertAt(ctx context.Context, p commit.Partition, _ int, values []any) error {
	return r.insert(ctx, p, values)
}

func (r *RecordRepo) insert(ctx context.Context, p commit.Partition, values []any) error {
	if len(values) != len(relief.Columns) {
		return fmt.Errorf("insert: got %d values, want %d", len(values), len(relief.Columns))
	}
	const q = `
insert into relief_records (
  id, month, submitted_at, record_date, time_slot, substitute_teacher,
  absent_teacher, class_name, subject, image1_ref, image2_ref
) values (?,?,?,?,?,?,?,?,?,?,?)`
	args := make([]any, 0, len(values)+2)
	args = append(args, uuid.NewString(), p.Name())
	for _, v := range values {
		args = append(args, fmt.Sprint(v))
	}
	if _, err := r.DB.ExecContext(ctx, rebind(r.Dialect, q), args...); err != nil {
		return fmt.Errorf("insert relief_records: %w", err)
	}
	return nil
}

// List returns the month's records, newest first.
func (r *RecordRepo) List(ctx context.Context, month Month) ([]relief.Record, error) {
	const q = `
select submitted_at, record_date, time_slot, substitute_teacher, absent_teacher,
       class_name, subject, image1_ref, image2_ref
from relief_records
where month = ?
order by submitted_at desc, created_at desc`
	rows, err := r.DB.QueryContext(ctx, rebind(r.Dialect, q), string(month))
	if err != nil {
		return nil, fmt.Errorf("list relief_records: %w", err)
	}
	defer rows.Close()

	var out []relief.Record
	for rows.Next() {
		var (
			rec relief.Record
			ts  string
		)
		if err := rows.Scan(&ts, &rec.RecordDate, &rec.TimeSlot, &rec.SubstituteTeacher, &rec.AbsentTeacher,
			&rec.ClassName, &rec.Subject, &rec.Image1Ref, &rec.Image2Ref); err != nil {
			return nil, err
		}
		if t, err := time.Parse(relief.TimestampLayout, ts); err == nil {
			rec.SubmittedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
