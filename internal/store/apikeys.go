package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"caseline/internal/domain"
)

// APIKeys manages long-lived credentials for service callers. Only the
// SHA-256 hash is stored; the plaintext key is shown once at creation.
type APIKeys struct {
	DB *sql.DB
}

// HashAPIKey returns the hex SHA-256 digest used for storage and lookup.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// NewAPIKeySecret returns a fresh random key in cl_<hex> form.
func NewAPIKeySecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "cl_" + hex.EncodeToString(buf), nil
}

func (a APIKeys) Create(ctx context.Context, k domain.APIKey) error {
	_, err := a.DB.ExecContext(ctx, `INSERT INTO api_keys(id,actor_id,name,roles,key_hash,created_at) VALUES (?,?,?,?,?,?)`,
		k.ID, k.ActorID, k.Name, joinRoles(k.Roles), k.KeyHash, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (a APIKeys) GetByHash(ctx context.Context, hash string) (domain.APIKey, error) {
	row := a.DB.QueryRowContext(ctx, `SELECT id,actor_id,name,roles,key_hash,created_at FROM api_keys WHERE key_hash=?`, hash)
	return scanKey(row)
}

func (a APIKeys) List(ctx context.Context) ([]domain.APIKey, error) {
	rows, err := a.DB.QueryContext(ctx, `SELECT id,actor_id,name,roles,key_hash,created_at FROM api_keys ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, k)
	}
	return res, rows.Err()
}

func (a APIKeys) Delete(ctx context.Context, id string) error {
	res, err := a.DB.ExecContext(ctx, `DELETE FROM api_keys WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (domain.APIKey, error) {
	var k domain.APIKey
	var name sql.NullString
	var roles string
	err := row.Scan(&k.ID, &k.ActorID, &name, &roles, &k.KeyHash, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.APIKey{}, ErrNotFound
	}
	if err != nil {
		return domain.APIKey{}, err
	}
	k.Name = name.String
	k.Roles = splitRoles(roles)
	return k, nil
}

func joinRoles(roles []string) string {
	return strings.Join(roles, ",")
}

func splitRoles(s string) []string {
	if s == "" {
		return nil
	}
	var res []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			res = append(res, r)
		}
	}
	return res
}
