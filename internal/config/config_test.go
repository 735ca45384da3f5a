package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("site:\n  baseURL: https://newtoki469.com/\n"))
	require.NoError(t, err)

	assert.Equal(t, "https://newtoki469.com", cfg.Site.BaseURL)
	assert.True(t, cfg.Mining.Enabled)
	assert.True(t, cfg.Raid.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Mining.Cooldown())
	assert.Equal(t, Range{MinMs: 0, MaxMs: 120000}, cfg.Mining.Extra)
	assert.Equal(t, 1000, cfg.Mining.ToolCost)
	assert.Equal(t, []RaidSlot{{10, 10}, {40, 10}}, cfg.Raid.Slots)
	assert.Equal(t, 10, cfg.Raid.DefaultReward)
	assert.Equal(t, 30*time.Second, cfg.Raid.Recency())
	assert.Equal(t, time.Second, cfg.Schedule.Tick())
	assert.Equal(t, 30*time.Second, cfg.Schedule.ErrorBackoff())
	assert.Equal(t, ActiveHoursConfig{Start: 8, End: 24}, cfg.Schedule.ActiveHours)
	assert.Equal(t, []string{"/toki_free", "/humor"}, cfg.Visit.Pages)
	assert.Equal(t, 2.0, cfg.Visit.Percent)
	assert.Equal(t, "li.list-item", cfg.Mining.List.Item)
	assert.Equal(t, `#bo_vc .media[id^="c_"]`, cfg.Raid.Comments.Item)
	assert.Equal(t, 253.0, cfg.Challenge.ClickX)
}

func TestParseKeepsExplicitValues(t *testing.T) {
	yml := `
site:
  baseURL: https://newtoki470.com
  nickname: miner
mining:
  enabled: false
  cooldownMs: 1000
  extra: { minMs: 10, maxMs: 5 }
raid:
  slots:
    - { startMinute: 0, durationMinutes: 5 }
schedule:
  activeHours: { start: 22, end: 6 }
`
	cfg, err := Parse([]byte(yml))
	require.NoError(t, err)
	assert.False(t, cfg.Mining.Enabled)
	assert.Equal(t, time.Second, cfg.Mining.Cooldown())
	assert.Equal(t, Range{MinMs: 10, MaxMs: 10}, cfg.Mining.Extra)
	assert.Equal(t, []RaidSlot{{0, 5}}, cfg.Raid.Slots)
	assert.Equal(t, "miner", cfg.Site.Nickname)
}

func TestParseHonoursExplicitZeros(t *testing.T) {
	yml := `
mining:
  extra: { minMs: 0, maxMs: 0 }
raid:
  defaultReward: 0
`
	cfg, err := Parse([]byte(yml))
	require.NoError(t, err)
	assert.Equal(t, Range{}, cfg.Mining.Extra)
	assert.Zero(t, cfg.Raid.DefaultReward)

	cfg, err = Parse([]byte("mining:\n  extra: { minMs: 5000 }\n"))
	require.NoError(t, err)
	assert.Equal(t, Range{MinMs: 5000, MaxMs: 120000}, cfg.Mining.Extra)
}

func TestValidateRejectsNegativeExtra(t *testing.T) {
	_, err := Parse([]byte("mining:\n  extra: { minMs: -1000, maxMs: 5000 }\n"))
	assert.ErrorContains(t, err, "mining.extra.minMs")
}

func TestValidateRejectsBadSlots(t *testing.T) {
	_, err := Parse([]byte("raid:\n  slots:\n    - { startMinute: 75, durationMinutes: 10 }\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("schedule:\n  activeHours: { start: 25, end: 3 }\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("notify:\n  email:\n    enabled: true\n"))
	assert.Error(t, err)
}

func TestActiveHoursContains(t *testing.T) {
	cases := []struct {
		name  string
		hours ActiveHoursConfig
		in    []int
		out   []int
	}{
		{"until midnight", ActiveHoursConfig{8, 24}, []int{8, 12, 23}, []int{0, 7}},
		{"plain", ActiveHoursConfig{9, 18}, []int{9, 17}, []int{8, 18, 23}},
		{"wraps", ActiveHoursConfig{22, 6}, []int{22, 23, 0, 5}, []int{6, 12, 21}},
		{"disabled", ActiveHoursConfig{0, 0}, []int{0, 12, 23}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, h := range tc.in {
				assert.True(t, tc.hours.Contains(h), "hour %d", h)
			}
			for _, h := range tc.out {
				assert.False(t, tc.hours.Contains(h), "hour %d", h)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser:\n  headless: false\n"), 0o600))
	t.Setenv("AUTOMINER_HEADLESS", "true")
	t.Setenv("AUTOMINER_SMTP_PASSWORD", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "secret", cfg.Notify.Email.AuthCode)
}
