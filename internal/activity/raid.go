package activity

import (
	"context"
	"fmt"
	"strings"

	"autominer/internal/browser"
	"autominer/internal/config"
	"autominer/internal/model"
	"autominer/internal/poll"
)

var attackNames = []string{"근접", "원거리", "불속성", "물속성", "바람속성", "땅속성"}

type Raid struct {
	env      *Env
	cfg      config.RaidConfig
	nickname string
	// lastAttacked is the raid already hit; a live raid is attacked once.
	lastAttacked string
}

func NewRaid(env *Env, cfg config.RaidConfig, nickname string) *Raid {
	return &Raid{env: env, cfg: cfg, nickname: strings.TrimSpace(nickname)}
}

func (r *Raid) LastAttacked() string { return r.lastAttacked }

// Attempt attacks the live raid once and reads back what it paid.
func (r *Raid) Attempt(ctx context.Context, page browser.Page) (model.ActivityResult, error) {
	bus := r.env.Bus

	listURL := r.env.Abs(r.cfg.ListPath)
	if err := r.env.open(ctx, page, listURL); err != nil {
		bus.Warn("raid list navigation failed", map[string]any{"url": listURL, "error": err.Error()})
		return model.Failed(model.OutcomeUnknown, "list navigation failed"), fault(ctx, err)
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return model.Failed(model.OutcomeUnknown, "list unreadable"), fault(ctx, err)
	}
	target, ok := model.FindLiveTarget(ParseTargets(html, r.cfg.List))
	if !ok {
		bus.Info("no live raid", nil)
		return model.Failed(model.OutcomeNoTarget, "no live raid"), nil
	}
	detail := r.env.Abs(target.URL)
	if detail == r.lastAttacked {
		bus.Info("raid already attacked, skipping", map[string]any{"url": detail})
		return model.Failed(model.OutcomeSkipped, "already attacked").WithTarget(detail), nil
	}

	if err := r.env.open(ctx, page, detail); err != nil {
		bus.Warn("raid navigation failed", map[string]any{"url": detail, "error": err.Error()})
		return model.Failed(model.OutcomeUnknown, "detail navigation failed").WithTarget(detail), fault(ctx, err)
	}
	if r.cfg.AttackedMarker != "" {
		if has, err := page.Has(ctx, r.cfg.AttackedMarker); err == nil && has {
			r.lastAttacked = detail
			bus.Info("raid shows post-attack marker, skipping", map[string]any{"url": detail})
			return model.Failed(model.OutcomeSkipped, "already attacked").WithTarget(detail), nil
		} else if f := fault(ctx, err); f != nil {
			return model.Failed(model.OutcomeUnknown, "marker check failed"), f
		}
	}
	if err := page.WaitVisible(ctx, r.cfg.Button, r.cfg.ControlWait()); err != nil {
		bus.Warn("attack button not found", map[string]any{"selector": r.cfg.Button})
		return model.Failed(model.OutcomeUnknown, "attack button missing").WithTarget(detail), fault(ctx, err)
	}
	if err := r.env.sleep(ctx, r.env.Human.ClickPause()); err != nil {
		return model.Failed(model.OutcomeUnknown, "stopped"), err
	}

	// the attack type is cosmetic; a miss keeps the form's default
	kind := r.env.Rand.Int(1, r.cfg.AttackTypes)
	radio := fmt.Sprintf(r.cfg.AttackRadio, kind)
	if err := page.Click(ctx, radio); err != nil {
		if f := fault(ctx, err); f != nil {
			return model.Failed(model.OutcomeUnknown, "attack type failed"), f
		}
		bus.Warn("attack type not selectable, using default", map[string]any{"selector": radio})
	} else {
		bus.Debug("attack type selected", map[string]any{"type": attackName(kind)})
	}

	dl := watchDialogs(page)
	defer dl.cancel()
	dl.drain()

	if err := r.env.sleep(ctx, r.env.Human.ClickPause()); err != nil {
		return model.Failed(model.OutcomeUnknown, "stopped"), err
	}
	if err := page.Click(ctx, r.cfg.Button); err != nil {
		bus.Warn("attack click failed", map[string]any{"error": err.Error()})
		return model.Failed(model.OutcomeUnknown, "click failed").WithTarget(detail), fault(ctx, err)
	}

	d, got, err := dl.wait(ctx, r.cfg.DialogWait())
	if err != nil {
		return model.Failed(model.OutcomeUnknown, "stopped"), err
	}
	if got {
		switch outcome := ClassifyDialog(d.Message); outcome {
		case model.OutcomeSuccess:
			bus.Info("raid hit", map[string]any{"dialog": Truncate(d.Message, 120)})
		case model.OutcomeTargetEnded:
			r.lastAttacked = detail
			bus.Info("raid already ended", map[string]any{"dialog": Truncate(d.Message, 120)})
			return model.Failed(outcome, Truncate(d.Message, 120)).WithTarget(detail), nil
		default:
			bus.Warn("raid refused", map[string]any{"dialog": Truncate(d.Message, 120), "outcome": string(outcome)})
			return model.Failed(outcome, Truncate(d.Message, 120)).WithTarget(detail), nil
		}
	}
	r.lastAttacked = detail

	reward, note, err := r.lookupReward(ctx, page)
	if err != nil {
		return model.Failed(model.OutcomeUnknown, "stopped").WithTarget(detail), err
	}
	return model.Succeeded(reward, note).WithTarget(detail), nil
}

// lookupReward finds the operator's own fresh comment and reads the points
// absorbed or lost from it. Anything it cannot read pays the default reward.
func (r *Raid) lookupReward(ctx context.Context, page browser.Page) (int, string, error) {
	bus := r.env.Bus
	if r.nickname == "" {
		return r.cfg.DefaultReward, "default reward: no nickname", nil
	}

	var mine *model.Comment
	found, err := poll.Until(ctx, r.env.pollInterval(), r.cfg.CommentWait(), func(ctx context.Context) (bool, error) {
		html, err := page.HTML(ctx)
		if err != nil {
			return false, fault(ctx, err)
		}
		for _, c := range ParseComments(html, r.cfg.Comments) {
			if c.Author != r.nickname {
				continue
			}
			age, ok := ParseRelativeAge(c.Age)
			if ok && age <= r.cfg.Recency() {
				mine = &c
				return true, nil
			}
			// an older own comment; this attack's may not be posted yet
			return false, nil
		}
		return false, nil
	})
	if err != nil {
		return 0, "", err
	}
	if !found {
		bus.Warn("own raid comment not found, default reward", map[string]any{"nickname": r.nickname})
		return r.cfg.DefaultReward, "default reward: no comment", nil
	}
	reward, ok := ParseRaidFeedback(mine.Body)
	if !ok {
		bus.Warn("raid feedback not recognised, default reward", map[string]any{"text": Truncate(mine.Body, 120)})
		return r.cfg.DefaultReward, "default reward: unparsed", nil
	}
	if reward < 0 {
		bus.Warn("raid counter-attacked", map[string]any{"points": reward})
	} else {
		bus.Info("raid absorbed points", map[string]any{"points": reward})
	}
	return reward, "", nil
}

func attackName(kind int) string {
	if kind >= 1 && kind <= len(attackNames) {
		return attackNames[kind-1]
	}
	return fmt.Sprintf("type %d", kind)
}
