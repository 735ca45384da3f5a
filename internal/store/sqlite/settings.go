package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"autominer/internal/model"
)

const cookiesKeyPrefix = "cookies:"

func cookiesKey(host string) string {
	return cookiesKeyPrefix + strings.ToLower(strings.TrimSpace(host))
}

// LoadCookies returns the cookie jar saved for host. ok is false when none
// was ever saved.
func (s *Store) LoadCookies(ctx context.Context, host string) ([]model.Cookie, bool, error) {
	var valueJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT value_json FROM settings WHERE key = ?
	`, cookiesKey(host)).Scan(&valueJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var out []model.Cookie
	if err := json.Unmarshal([]byte(valueJSON), &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (s *Store) SaveCookies(ctx context.Context, host string, cookies []model.Cookie) error {
	if cookies == nil {
		cookies = []model.Cookie{}
	}
	b, err := json.Marshal(cookies)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value_json = excluded.value_json,
			updated_at = excluded.updated_at
	`, cookiesKey(host), string(b), time.Now().UnixMilli())
	return err
}
