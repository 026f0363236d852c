package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"caseline/internal/domain"
)

// Writer mirrors committed case history entries into the events table so
// they can be queried across cases. Appends only; rows are never updated
// or deleted.
type Writer struct {
	DB *sql.DB
}

func (w Writer) Append(ctx context.Context, caseID, status string, ev domain.Event) error {
	_, err := w.DB.ExecContext(ctx, `INSERT INTO events(ts,case_id,kind,source,content,status) VALUES (?,?,?,?,?,?)`,
		ev.TS, caseID, ev.Kind, ev.Source, ev.Content, nullable(status))
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Filters narrows audit queries.
type Filters struct {
	CaseID string
	Kind   string
	Limit  int
	Cursor int64
}

// Latest returns the newest entries first, older than the cursor id when set.
func (w Writer) Latest(ctx context.Context, f Filters) ([]domain.AuditEntry, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.CaseID != "" {
		clauses = append(clauses, "case_id=?")
		args = append(args, f.CaseID)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,case_id,kind,source,content,status FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	return w.query(ctx, query, args...)
}

// After returns entries with ids greater than the cursor in ascending order.
func (w Writer) After(ctx context.Context, cursor int64, limit int, caseID string) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if caseID != "" {
		clauses = append(clauses, "case_id=?")
		args = append(args, caseID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,case_id,kind,source,content,status FROM events %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	return w.query(ctx, query, args...)
}

func (w Writer) query(ctx context.Context, query string, args ...any) ([]domain.AuditEntry, error) {
	rows, err := w.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var status sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.CaseID, &e.Kind, &e.Source, &e.Content, &status); err != nil {
			return nil, err
		}
		if status.Valid {
			e.Status = status.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
