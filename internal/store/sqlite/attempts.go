package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"autominer/internal/model"
)

// RecordAttempt stores one outcome and folds it into the day's progress row
// in the same transaction.
func (s *Store) RecordAttempt(ctx context.Context, a model.Attempt) error {
	if a.Kind == "" {
		return errors.New("attempt kind is required")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.At.IsZero() {
		a.At = time.Now()
	}
	day := model.Today(a.At)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	success := 0
	if a.Success {
		success = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO attempts (id, kind, target, success, reward, outcome, note, day, at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, string(a.Kind), a.Target, success, a.Reward, string(a.Outcome), a.Note, day, a.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	var mine, mineReward, raid, raidReward, downloads int
	switch a.Kind {
	case model.KindMining:
		if a.Consumed() {
			mine, mineReward = 1, a.Reward
		}
	case model.KindRaid:
		if a.Consumed() {
			raid, raidReward = 1, a.Reward
		}
	case model.KindDownload:
		if a.Success {
			downloads = 1
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_progress (day, mine_count, mine_reward, raid_count, raid_reward, downloads, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			mine_count = mine_count + excluded.mine_count,
			mine_reward = mine_reward + excluded.mine_reward,
			raid_count = raid_count + excluded.raid_count,
			raid_reward = raid_reward + excluded.raid_reward,
			downloads = downloads + excluded.downloads,
			updated_at = excluded.updated_at
	`, day, mine, mineReward, raid, raidReward, downloads, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("update daily progress: %w", err)
	}
	return tx.Commit()
}

// ListAttempts returns the newest attempts first. limit <= 0 means 100.
func (s *Store) ListAttempts(ctx context.Context, limit int) ([]model.Attempt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, target, success, reward, outcome, note, at_ms
		FROM attempts ORDER BY at_ms DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		var row struct {
			id      string
			kind    string
			target  string
			success int
			reward  int
			outcome string
			note    string
			atMs    int64
		}
		if err := rows.Scan(&row.id, &row.kind, &row.target, &row.success, &row.reward, &row.outcome, &row.note, &row.atMs); err != nil {
			return nil, err
		}
		out = append(out, model.Attempt{
			ID:      row.id,
			Kind:    model.ActivityKind(row.kind),
			Target:  row.target,
			Success: row.success == 1,
			Reward:  row.reward,
			Outcome: model.Outcome(row.outcome),
			Note:    row.note,
			At:      time.UnixMilli(row.atMs),
		})
	}
	return out, rows.Err()
}
