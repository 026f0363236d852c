package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"caseline/internal/domain"
)

var (
	ErrNotFound        = errors.New("case not found")
	ErrVersionConflict = errors.New("case version conflict")
)

// Store is the case document boundary: whole records in, whole records
// out. No partial updates; writes are guarded by an optimistic version
// check so concurrent writers get a conflict instead of silently losing.
type Store interface {
	Insert(ctx context.Context, c domain.Case) error
	Get(ctx context.Context, id string) (domain.Case, error)
	Set(ctx context.Context, c domain.Case, expectedVersion int64) error
	List(ctx context.Context, f Filters) ([]domain.Case, error)
}

// Filters narrows List results. Cursor pagination is keyed on
// (created_at, id) descending.
type Filters struct {
	Status          string
	OwnerID         string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

// SQLite stores each case as one JSON document row. Status, owner and
// timestamps are denormalized for listing; case_json is authoritative.
type SQLite struct {
	DB *sql.DB
}

func NewSQLite(db *sql.DB) SQLite {
	return SQLite{DB: db}
}

// Insert creates a case at version 1.
func (s SQLite) Insert(ctx context.Context, c domain.Case) error {
	c.Version = 1
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal case: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO cases(id,owner_id,status,version,case_json,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.OwnerID, c.Status, c.Version, string(payload), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s SQLite) Get(ctx context.Context, id string) (domain.Case, error) {
	var payload string
	var version int64
	err := s.DB.QueryRowContext(ctx, `SELECT case_json, version FROM cases WHERE id=?`, id).Scan(&payload, &version)
	if err == sql.ErrNoRows {
		return domain.Case{}, ErrNotFound
	}
	if err != nil {
		return domain.Case{}, err
	}
	var c domain.Case
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return domain.Case{}, fmt.Errorf("unmarshal case %s: %w", id, err)
	}
	c.Version = version
	return c, nil
}

// Set overwrites the full record only if the stored version still equals
// expectedVersion, bumping the version by one. Returns ErrVersionConflict
// when another writer got there first.
func (s SQLite) Set(ctx context.Context, c domain.Case, expectedVersion int64) error {
	c.Version = expectedVersion + 1
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal case: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE cases SET owner_id=?, status=?, version=?, case_json=?, updated_at=? WHERE id=? AND version=?`,
		c.OwnerID, c.Status, c.Version, string(payload), c.UpdatedAt, c.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		var exists int
		if err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM cases WHERE id=?`, c.ID).Scan(&exists); err == sql.ErrNoRows {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}

func (s SQLite) List(ctx context.Context, f Filters) ([]domain.Case, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT case_json, version FROM cases ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Case
	for rows.Next() {
		var payload string
		var version int64
		if err := rows.Scan(&payload, &version); err != nil {
			return nil, err
		}
		var c domain.Case
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return nil, fmt.Errorf("unmarshal case: %w", err)
		}
		c.Version = version
		res = append(res, c)
	}
	return res, rows.Err()
}
