package model

import "time"

type SessionStats struct {
	MineCount     int `json:"mineCount"`
	MineReward    int `json:"mineReward"`
	RaidCount     int `json:"raidCount"`
	RaidReward    int `json:"raidReward"`
	DownloadCount int `json:"downloadCount"`
	VisitCount    int `json:"visitCount"`
	Errors        int `json:"errors"`
}

func (s SessionStats) TotalReward() int { return s.MineReward + s.RaidReward }

type TimelineEvent struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	Title  string    `json:"title"`
	Detail string    `json:"detail,omitempty"`
}

// Attempt is one persisted activity outcome.
type Attempt struct {
	ID      string       `json:"id"`
	Kind    ActivityKind `json:"kind"`
	Target  string       `json:"target,omitempty"`
	Success bool         `json:"success"`
	Reward  int          `json:"reward"`
	Outcome Outcome      `json:"outcome"`
	Note    string       `json:"note,omitempty"`
	At      time.Time    `json:"at"`
}

// DailyProgress is the per-calendar-day tally kept across restarts.
type DailyProgress struct {
	Day        string `json:"day"`
	MineCount  int    `json:"mineCount"`
	MineReward int    `json:"mineReward"`
	RaidCount  int    `json:"raidCount"`
	RaidReward int    `json:"raidReward"`
	Downloads  int    `json:"downloads"`
}

type ChallengeCounters struct {
	AutoPassed  int `json:"autoPassed"`
	ClickPassed int `json:"clickPassed"`
	Failed      int `json:"failed"`
}

// SchedulerState is the externally visible snapshot of the tick loop.
type SchedulerState struct {
	Running      bool         `json:"running"`
	Phase        string       `json:"phase"`
	ActiveHours  bool         `json:"activeHours"`
	NextMineAt   time.Time    `json:"nextMineAt,omitempty"`
	LastRaidSlot string       `json:"lastRaidSlot,omitempty"`
	WindowStart  time.Time    `json:"downloadStart,omitempty"`
	WindowEnd    time.Time    `json:"downloadEnd,omitempty"`
	Stats        SessionStats `json:"stats"`
	StartedAt    time.Time    `json:"startedAt"`
}

func (a Attempt) Consumed() bool {
	return ActivityResult{Success: a.Success, Outcome: a.Outcome}.Consumed()
}

// Today is the progress key for t in its own location.
func Today(t time.Time) string { return t.Format("2006-01-02") }
