package database

import (
	"context"
	"encoding/json"
)

const getSetting = `SELECT key, value, updated_at FROM settings WHERE key = $1`

func (q *Queries) GetSetting(ctx context.Context, key string) (Setting, error) {
	var s Setting
	err := q.db.QueryRow(ctx, getSetting, key).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	return s, err
}

const listSettings = `SELECT key, value, updated_at FROM settings ORDER BY key`

func (q *Queries) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := q.db.Query(ctx, listSettings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

type UpsertSettingParams struct {
	Key   string
	Value json.RawMessage
}

const upsertSetting = `
INSERT INTO settings (key, value)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
RETURNING key, value, updated_at`

func (q *Queries) UpsertSetting(ctx context.Context, arg UpsertSettingParams) (Setting, error) {
	var s Setting
	err := q.db.QueryRow(ctx, upsertSetting, arg.Key, arg.Value).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	return s, err
}
