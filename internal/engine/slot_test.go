package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"autominer/internal/config"
)

func TestSlotAt(t *testing.T) {
	twice := []config.RaidSlot{{StartMinute: 10, DurationMinutes: 10}, {StartMinute: 40, DurationMinutes: 10}}
	wrap := []config.RaidSlot{{StartMinute: 55, DurationMinutes: 10}}

	cases := []struct {
		name  string
		at    time.Time
		slots []config.RaidSlot
		id    string
		ok    bool
	}{
		{"before first", at(14, 9, 59), twice, "", false},
		{"slot opens", at(14, 10, 0), twice, "2026-01-02 14:10", true},
		{"last second", at(14, 19, 59), twice, "2026-01-02 14:10", true},
		{"slot closed", at(14, 20, 0), twice, "", false},
		{"second slot", at(14, 45, 30), twice, "2026-01-02 14:40", true},
		{"wraps the hour", at(15, 3, 0), wrap, "2026-01-02 14:55", true},
		{"wraps the day", time.Date(2026, 1, 3, 0, 4, 0, 0, time.Local), wrap, "2026-01-02 23:55", true},
		{"no slots", at(14, 10, 0), nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := SlotAt(tc.at, tc.slots)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.id, id)
		})
	}
}

func TestSlotIDDiffersAcrossDays(t *testing.T) {
	slots := []config.RaidSlot{{StartMinute: 10, DurationMinutes: 10}}
	a, _ := SlotAt(at(14, 12, 0), slots)
	b, _ := SlotAt(at(14, 12, 0).AddDate(0, 0, 1), slots)
	assert.NotEqual(t, a, b)
}
