package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autominer/internal/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "autominer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(hh int) time.Time {
	return time.Date(2026, 1, 2, hh, 0, 0, 0, time.Local)
}

func TestRecordAttemptFoldsProgress(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	attempts := []model.Attempt{
		{Kind: model.KindMining, Success: true, Reward: 266, Outcome: model.OutcomeSuccess, At: day(9)},
		{Kind: model.KindMining, Reward: -837, Outcome: model.OutcomeLoss, At: day(10)},
		{Kind: model.KindMining, Outcome: model.OutcomeNoTarget, At: day(11)},
		{Kind: model.KindRaid, Success: true, Reward: 50, Outcome: model.OutcomeSuccess, At: day(12)},
		{Kind: model.KindRaid, Outcome: model.OutcomeTargetEnded, At: day(13)},
		{Kind: model.KindDownload, Success: true, Outcome: model.OutcomeSuccess, At: day(14)},
		{Kind: model.KindVisit, Success: true, Outcome: model.OutcomeSuccess, At: day(15)},
	}
	for _, a := range attempts {
		require.NoError(t, s.RecordAttempt(ctx, a))
	}

	p, err := s.Progress(ctx, "2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, model.DailyProgress{
		Day:        "2026-01-02",
		MineCount:  2,
		MineReward: 266 - 837,
		RaidCount:  1,
		RaidReward: 50,
		Downloads:  1,
	}, p)

	other, err := s.Progress(ctx, "2026-01-03")
	require.NoError(t, err)
	assert.Zero(t, other.MineCount)
}

func TestListAttemptsNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for h := 9; h <= 12; h++ {
		require.NoError(t, s.RecordAttempt(ctx, model.Attempt{
			Kind: model.KindMining, Success: true, Reward: h, Outcome: model.OutcomeSuccess, Target: "/mine/1", At: day(h),
		}))
	}

	got, err := s.ListAttempts(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 12, got[0].Reward)
	assert.Equal(t, 10, got[2].Reward)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, "/mine/1", got[0].Target)
	assert.True(t, got[0].At.Equal(day(12)))
}

func TestRecordAttemptRequiresKind(t *testing.T) {
	s := openStore(t)
	assert.Error(t, s.RecordAttempt(context.Background(), model.Attempt{}))
}

func TestResetDay(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordAttempt(ctx, model.Attempt{Kind: model.KindMining, Success: true, Reward: 5, At: day(9)}))

	require.NoError(t, s.ResetDay(ctx, "2026-01-02"))
	p, err := s.Progress(ctx, "2026-01-02")
	require.NoError(t, err)
	assert.Zero(t, p.MineCount)

	// attempts themselves are kept
	list, err := s.ListAttempts(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.ResetDay(ctx, "2026-01-03"))
}

func TestCookiesRoundTripPerHost(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, ok, err := s.LoadCookies(ctx, "www.example469.com")
	require.NoError(t, err)
	assert.False(t, ok)

	jar := []model.Cookie{{Name: "cf_clearance", Value: "abc", Domain: ".example469.com", HttpOnly: true}}
	require.NoError(t, s.SaveCookies(ctx, "WWW.example469.com", jar))
	require.NoError(t, s.SaveCookies(ctx, "other.com", nil))

	got, ok, err := s.LoadCookies(ctx, "www.example469.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, jar, got)

	empty, ok, err := s.LoadCookies(ctx, "other.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, empty)
}
