package activity

import (
	"context"

	"autominer/internal/browser"
	"autominer/internal/config"
	"autominer/internal/model"
)

// Download fills the idle slice of a mining cooldown with reader-like
// activity on one of the configured pages. The site offers no real download
// to drive, so the slice is spent browsing.
type Download struct {
	env *Env
	cfg config.DownloadConfig
}

func NewDownload(env *Env, cfg config.DownloadConfig) *Download {
	return &Download{env: env, cfg: cfg}
}

// Fill runs until done reports true or ctx ends. done is checked between
// steps, so the filler yields within one step of mining coming due.
func (d *Download) Fill(ctx context.Context, page browser.Page, done func() bool) (model.ActivityResult, error) {
	bus := d.env.Bus
	if len(d.cfg.Pages) > 0 {
		target := d.env.Abs(d.cfg.Pages[d.env.Rand.Pick(len(d.cfg.Pages))])
		if err := d.env.open(ctx, page, target); err != nil {
			if f := fault(ctx, err); f != nil {
				return model.Failed(model.OutcomeUnknown, "stopped"), f
			}
			bus.Warn("filler page failed", map[string]any{"url": target, "error": err.Error()})
		}
	}
	steps := 0
	for !done() {
		if err := idleStep(ctx, d.env, page); err != nil {
			return model.Failed(model.OutcomeUnknown, "stopped"), err
		}
		steps++
		if err := d.env.sleep(ctx, d.cfg.Step()); err != nil {
			return model.Failed(model.OutcomeUnknown, "stopped"), err
		}
	}
	bus.Info("filler window finished", map[string]any{"steps": steps})
	return model.Succeeded(0, ""), nil
}

// idleStep is one reader gesture: mostly a pointer move, sometimes a scroll,
// sometimes nothing. Driver hiccups are ignored; a dead driver is not.
func idleStep(ctx context.Context, env *Env, page browser.Page) error {
	var err error
	switch n := env.Rand.Int(1, 10); {
	case n <= 6:
		err = page.MoveRandom(ctx)
	case n <= 9:
		err = page.Scroll(ctx, env.Human.ScrollDelta())
	}
	return fault(ctx, err)
}

// Visit opens a random board page and stays a while, the low-probability
// filler of otherwise idle ticks.
type Visit struct {
	env *Env
	cfg config.VisitConfig
}

func NewVisit(env *Env, cfg config.VisitConfig) *Visit {
	return &Visit{env: env, cfg: cfg}
}

func (v *Visit) Attempt(ctx context.Context, page browser.Page) (model.ActivityResult, error) {
	if len(v.cfg.Pages) == 0 {
		return model.Failed(model.OutcomeSkipped, "no pages"), nil
	}
	path := v.cfg.Pages[v.env.Rand.Pick(len(v.cfg.Pages))]
	target := v.env.Abs(path)
	v.env.Bus.Info("visiting", map[string]any{"page": path})
	if err := v.env.open(ctx, page, target); err != nil {
		v.env.Bus.Warn("visit failed", map[string]any{"url": target, "error": err.Error()})
		return model.Failed(model.OutcomeUnknown, "navigation failed"), fault(ctx, err)
	}
	stay := v.env.Rand.Duration(v.cfg.Stay.Min(), v.cfg.Stay.Max())
	if err := v.env.sleep(ctx, stay); err != nil {
		return model.Failed(model.OutcomeUnknown, "stopped"), err
	}
	if err := fault(ctx, page.Scroll(ctx, v.env.Human.ScrollDelta())); err != nil {
		return model.Failed(model.OutcomeUnknown, "stopped"), err
	}
	return model.Succeeded(0, "").WithTarget(target), nil
}
