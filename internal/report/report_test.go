package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autominer/internal/model"
)

func sample() Input {
	start := time.Date(2026, 1, 2, 9, 0, 0, 0, time.Local)
	return Input{
		SessionID: "3f2c9a1e-aaaa-bbbb-cccc-123456789abc",
		Seed:      42,
		StartedAt: start,
		EndedAt:   start.Add(2*time.Hour + 5*time.Minute),
		Reason:    "interrupt",
		Stats:     model.SessionStats{MineCount: 12, MineReward: 2300, RaidCount: 3, RaidReward: -20, DownloadCount: 10, Errors: 1},
		Challenge: model.ChallengeCounters{AutoPassed: 2, ClickPassed: 1},
		Progress:  &model.DailyProgress{Day: "2026-01-02", MineCount: 20, MineReward: 4000},
		Timeline: []model.TimelineEvent{
			{At: start.Add(time.Minute), Kind: "mining", Title: "success +266", Detail: "https://site/mine/1"},
			{At: start.Add(40 * time.Minute), Kind: "raid", Title: "error", Detail: "navigate: a|b\nc"},
		},
	}
}

func TestRender(t *testing.T) {
	out, err := Render(sample())
	require.NoError(t, err)

	assert.Contains(t, out, "# Session 3f2c9a1e-aaaa-bbbb-cccc-123456789abc")
	assert.Contains(t, out, "- Ended: 2026-01-02 11:05:00 (2h5m0s)")
	assert.Contains(t, out, "- Stopped by: interrupt")
	assert.Contains(t, out, "| Mining | 12 | +2300 |")
	assert.Contains(t, out, "| Raid | 3 | -20 |")
	assert.Contains(t, out, "| **Total** | | **+2280** |")
	assert.Contains(t, out, "| 2 | 1 | 0 |")
	assert.Contains(t, out, "Mined 20 (+4000)")
	assert.Contains(t, out, "| 09:01:00 | mining | success +266 | https://site/mine/1 |")
	assert.Contains(t, out, `| 09:40:00 | raid | error | navigate: a\|b c |`)
}

func TestRenderEmptySession(t *testing.T) {
	in := sample()
	in.Timeline = nil
	in.Progress = nil
	in.Reason = ""
	out, err := Render(in)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing happened.")
	assert.NotContains(t, out, "## Today")
	assert.NotContains(t, out, "Stopped by")
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := Write(dir, sample())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "session-20260102-090000-3f2c9a1e.md"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "## Timeline")
}
