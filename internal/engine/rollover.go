package engine

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"autominer/internal/logbus"
	"autominer/internal/model"
	"autominer/internal/notify"
)

// startRollover registers the day-change job. The returned func blocks until
// a running job has finished.
func (s *Scheduler) startRollover(ctx context.Context) (func(), error) {
	spec := s.cfg.Schedule.RolloverCron
	if spec == "" {
		return func() {}, nil
	}
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(spec, func() { s.rollover(ctx) }); err != nil {
		return nil, fmt.Errorf("register rollover %q: %w", spec, err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}

// rollover closes the finished day: it publishes and mails the day's totals
// and opens a fresh progress row for the new day.
func (s *Scheduler) rollover(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	now := s.clock.Now()
	today := model.Today(now)
	yesterday := model.Today(now.AddDate(0, 0, -1))

	progress, err := s.recorder.Progress(ctx, yesterday)
	if err != nil {
		s.bus.Warn("read daily progress failed", map[string]any{"day": yesterday, "error": err.Error()})
		progress = model.DailyProgress{Day: yesterday}
	}
	session := s.Stats()
	s.bus.Publish(logbus.TypeStats, DailySummary{Progress: progress, Session: session})
	detail := fmt.Sprintf("mined %d (%+d), raided %d (%+d), downloads %d",
		progress.MineCount, progress.MineReward, progress.RaidCount, progress.RaidReward, progress.Downloads)
	s.notifier.NotifyEvent(ctx, notify.Event{
		At:     now.UnixMilli(),
		Kind:   notify.EventDailySummary,
		Title:  "daily summary " + yesterday,
		Detail: detail,
		Stats:  &session,
	})

	if err := s.recorder.ResetDay(ctx, today); err != nil {
		s.bus.Warn("reset daily progress failed", map[string]any{"day": today, "error": err.Error()})
		return
	}
	s.addTimeline("rollover", "day "+today+" started", "")
	s.bus.Info("daily progress rolled over", map[string]any{"closed": yesterday, "opened": today})
}
