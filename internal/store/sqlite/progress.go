package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"autominer/internal/model"
)

// Progress returns the tally for day ("2006-01-02"). A day with no row yet
// reads as zeros.
func (s *Store) Progress(ctx context.Context, day string) (model.DailyProgress, error) {
	out := model.DailyProgress{Day: day}
	err := s.db.QueryRowContext(ctx, `
		SELECT mine_count, mine_reward, raid_count, raid_reward, downloads
		FROM daily_progress WHERE day = ?
	`, day).Scan(&out.MineCount, &out.MineReward, &out.RaidCount, &out.RaidReward, &out.Downloads)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return model.DailyProgress{}, err
	}
	return out, nil
}

func (s *Store) Today(ctx context.Context) (model.DailyProgress, error) {
	return s.Progress(ctx, model.Today(time.Now()))
}

// ResetDay zeroes the progress row for day, creating it if needed.
func (s *Store) ResetDay(ctx context.Context, day string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_progress (day, mine_count, mine_reward, raid_count, raid_reward, downloads, updated_at)
		VALUES (?, 0, 0, 0, 0, 0, ?)
		ON CONFLICT(day) DO UPDATE SET
			mine_count = 0,
			mine_reward = 0,
			raid_count = 0,
			raid_reward = 0,
			downloads = 0,
			updated_at = excluded.updated_at
	`, day, time.Now().UnixMilli())
	return err
}
