package engine

import (
	"time"

	"autominer/internal/config"
)

// SlotAt returns the identifier of the raid slot covering t. The identifier
// is the slot's start minute qualified by its date, so the same clock slot on
// two days never compares equal.
func SlotAt(t time.Time, slots []config.RaidSlot) (string, bool) {
	m := t.Minute()
	for _, s := range slots {
		if s.DurationMinutes <= 0 {
			continue
		}
		offset := (m - s.StartMinute + 60) % 60
		if offset >= s.DurationMinutes {
			continue
		}
		start := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), s.StartMinute, 0, 0, t.Location())
		if m < s.StartMinute {
			// slot began in the previous hour
			start = start.Add(-time.Hour)
		}
		return start.Format("2006-01-02 15:04"), true
	}
	return "", false
}
