package model

type ActivityKind string

const (
	KindMining   ActivityKind = "mining"
	KindRaid     ActivityKind = "raid"
	KindDownload ActivityKind = "download"
	KindVisit    ActivityKind = "visit"
)

// Outcome is the closed set of feedback categories an attempt resolves to.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeCooldownBlocked Outcome = "cooldown_blocked"
	OutcomeTargetEnded     Outcome = "target_ended"
	OutcomeUnknown         Outcome = "unknown"
	OutcomeNoTarget        Outcome = "no_target"
	OutcomeSkipped         Outcome = "skipped"

	// OutcomeLoss is an attempt that ran and cost more than it paid back.
	OutcomeLoss Outcome = "loss"
)

// Consumed reports whether the attempt actually reached the game, whatever
// it paid. Expected-empty outcomes did not.
func (r ActivityResult) Consumed() bool {
	return r.Success || r.Outcome == OutcomeLoss
}

// ActivityResult is what every attempt hands back to the scheduler. Reward is
// signed: a raid counter-attack or a failed mine costs points.
type ActivityResult struct {
	Success bool    `json:"success"`
	Reward  int     `json:"reward"`
	Outcome Outcome `json:"outcome"`
	Target  string  `json:"target,omitempty"`
	Note    string  `json:"note,omitempty"`
}

func Failed(outcome Outcome, note string) ActivityResult {
	return ActivityResult{Success: false, Outcome: outcome, Note: note}
}

func Succeeded(reward int, note string) ActivityResult {
	return ActivityResult{Success: true, Reward: reward, Outcome: OutcomeSuccess, Note: note}
}

func (r ActivityResult) WithTarget(url string) ActivityResult {
	r.Target = url
	return r
}
