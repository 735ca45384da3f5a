package activity

import (
	"context"

	"autominer/internal/browser"
	"autominer/internal/config"
	"autominer/internal/model"
	"autominer/internal/poll"
)

type Mining struct {
	env *Env
	cfg config.MiningConfig
	// attempts made this session; the first one may legitimately find an
	// empty comment board
	attempts int
}

func NewMining(env *Env, cfg config.MiningConfig) *Mining {
	return &Mining{env: env, cfg: cfg}
}

// Attempt runs one mining try and resolves what it paid. Only driver faults
// and cancellation are returned as errors.
func (m *Mining) Attempt(ctx context.Context, page browser.Page) (model.ActivityResult, error) {
	bus := m.env.Bus
	first := m.attempts == 0
	m.attempts++

	listURL := m.env.Abs(m.cfg.ListPath)
	if err := m.env.open(ctx, page, listURL); err != nil {
		bus.Warn("mine list navigation failed", map[string]any{"url": listURL, "error": err.Error()})
		return model.Failed(model.OutcomeUnknown, "list navigation failed"), fault(ctx, err)
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return model.Failed(model.OutcomeUnknown, "list unreadable"), fault(ctx, err)
	}
	target, ok := model.FindLiveTarget(ParseTargets(html, m.cfg.List))
	if !ok {
		bus.Info("no live mine", nil)
		return model.Failed(model.OutcomeNoTarget, "no live mine"), nil
	}
	detail := m.env.Abs(target.URL)
	bus.Info("mine found", map[string]any{"name": target.Name, "url": detail})

	if err := m.env.open(ctx, page, detail); err != nil {
		bus.Warn("mine navigation failed", map[string]any{"url": detail, "error": err.Error()})
		return model.Failed(model.OutcomeUnknown, "detail navigation failed").WithTarget(detail), fault(ctx, err)
	}
	if err := page.WaitVisible(ctx, m.cfg.Button, m.cfg.ControlWait()); err != nil {
		bus.Warn("mine button not found", map[string]any{"selector": m.cfg.Button})
		return model.Failed(model.OutcomeUnknown, "mine button missing").WithTarget(detail), fault(ctx, err)
	}
	if err := page.WaitEnabled(ctx, m.cfg.Button, m.cfg.ControlWait()); err != nil {
		bus.Warn("mine button disabled", map[string]any{"selector": m.cfg.Button})
		return model.Failed(model.OutcomeUnknown, "mine button disabled").WithTarget(detail), fault(ctx, err)
	}

	html, err = page.HTML(ctx)
	if err != nil {
		return model.Failed(model.OutcomeUnknown, "detail unreadable").WithTarget(detail), fault(ctx, err)
	}
	cost := m.cfg.ToolCost
	if tool, ok := BestTool(ParseTools(html, m.cfg.ToolSelector, m.cfg.ToolCosts)); ok {
		if err := page.Click(ctx, "#"+tool.ID); err != nil {
			if f := fault(ctx, err); f != nil {
				return model.Failed(model.OutcomeUnknown, "tool select failed"), f
			}
			bus.Warn("tool select failed, using default", map[string]any{"tool": tool.ID})
		} else {
			if tool.Cost > 0 {
				cost = tool.Cost
			}
			bus.Debug("tool selected", map[string]any{"tool": tool.ID, "cost": cost})
		}
	}
	baseline := LatestCommentID(html, m.cfg.Comments)

	dl := watchDialogs(page)
	defer dl.cancel()
	dl.drain()

	if err := m.env.sleep(ctx, m.env.Human.ClickPause()); err != nil {
		return model.Failed(model.OutcomeUnknown, "stopped"), err
	}
	if err := page.Click(ctx, m.cfg.Button); err != nil {
		bus.Warn("mine button click failed", map[string]any{"error": err.Error()})
		return model.Failed(model.OutcomeUnknown, "click failed").WithTarget(detail), fault(ctx, err)
	}

	window := m.env.Rand.Duration(m.cfg.DialogWait.Min(), m.cfg.DialogWait.Max())
	d, got, err := dl.wait(ctx, window)
	if err != nil {
		return model.Failed(model.OutcomeUnknown, "stopped"), err
	}
	if got {
		outcome := ClassifyDialog(d.Message)
		if outcome == model.OutcomeSuccess || outcome == model.OutcomeUnknown {
			outcome = model.OutcomeCooldownBlocked
		}
		bus.Warn("mine refused", map[string]any{"dialog": Truncate(d.Message, 120), "outcome": string(outcome)})
		return model.Failed(outcome, Truncate(d.Message, 120)).WithTarget(detail), nil
	}

	var latest []model.Comment
	found, err := poll.Until(ctx, m.cfg.CommentPoll(), m.cfg.CommentWait(), func(ctx context.Context) (bool, error) {
		html, err := page.HTML(ctx)
		if err != nil {
			if f := fault(ctx, err); f != nil {
				return false, f
			}
			return false, nil
		}
		latest = ParseComments(html, m.cfg.Comments)
		return len(latest) > 0 && latest[0].ID != "" && latest[0].ID != baseline, nil
	})
	if err != nil {
		return model.Failed(model.OutcomeUnknown, "stopped"), err
	}
	if !found {
		if first && baseline == "" {
			bus.Info("mined, no baseline comment to compare", nil)
		} else {
			bus.Warn("mined, no new comment", map[string]any{"baseline": baseline})
		}
		return model.Succeeded(0, "no feedback").WithTarget(detail), nil
	}

	body := latest[0].Body
	reward, success, ok := ParseMiningFeedback(body, cost)
	switch {
	case !ok:
		bus.Warn("mining feedback not recognised", map[string]any{"text": Truncate(body, 120)})
		return model.Succeeded(0, "unparsed feedback").WithTarget(detail), nil
	case success:
		bus.Info("mining paid", map[string]any{"net": reward})
		return model.Succeeded(reward, "").WithTarget(detail), nil
	default:
		bus.Warn("mining lost", map[string]any{"net": reward})
		return model.ActivityResult{Reward: reward, Outcome: model.OutcomeLoss, Target: detail}, nil
	}
}
