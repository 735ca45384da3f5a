package challenge

import (
	"context"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"autominer/internal/browser"
	"autominer/internal/config"
	"autominer/internal/logbus"
	"autominer/internal/model"
	"autominer/internal/notify"
	"autominer/internal/poll"
	"autominer/internal/random"
)

// Event is published on the bus for every challenge transition.
type Event struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Notification asks for an operator mail when the gate gave up.
func (e Event) Notification() (notify.Event, bool) {
	if e.Stage != StageFailed {
		return notify.Event{}, false
	}
	return notify.Event{
		Kind:   notify.EventChallengeFailed,
		Title:  "challenge not cleared",
		Detail: e.URL,
	}, true
}

const (
	StageDetected    = "detected"
	StageAutoPassed  = "auto_passed"
	StageClicked     = "clicked"
	StageClickPassed = "click_passed"
	StageFailed      = "failed"
)

// Gate waits out anti-bot interstitials before an activity trusts the page.
type Gate struct {
	cfg config.ChallengeConfig
	rnd *random.Policy
	bus *logbus.Bus

	mu       sync.Mutex
	counters model.ChallengeCounters
}

func New(cfg config.ChallengeConfig, rnd *random.Policy, bus *logbus.Bus) *Gate {
	return &Gate{cfg: cfg, rnd: rnd, bus: bus}
}

func (g *Gate) Counters() model.ChallengeCounters {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counters
}

// Detect reports whether page shows a challenge. Any single signal is enough.
// Driver errors read as "no challenge"; the caller's next action surfaces them.
func (g *Gate) Detect(ctx context.Context, page browser.Page) (bool, string) {
	title := strings.ToLower(page.Title())
	for _, kw := range g.cfg.TitleKeywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			return true, "title: " + kw
		}
	}
	u := page.URL()
	for _, m := range g.cfg.URLMarkers {
		if m != "" && strings.Contains(u, m) {
			return true, "url: " + m
		}
	}
	for _, sel := range g.cfg.DOMMarkers {
		if ok, err := page.Has(ctx, sel); err == nil && ok {
			return true, "dom: " + sel
		}
	}
	if len(g.cfg.BodyPhrases) > 0 {
		html, err := page.HTML(ctx)
		if err == nil {
			if phrase, ok := containsPhrase(html, g.cfg.BodyPhrases); ok {
				return true, "text: " + phrase
			}
		}
	}
	return false, ""
}

func containsPhrase(html string, phrases []string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	text := doc.Find("body").Text()
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}

// Await returns true once the page is clear. Without a challenge it returns
// immediately. Otherwise it waits passively, clicks once, waits again, and
// gives up with false. It never fails the caller.
func (g *Gate) Await(ctx context.Context, page browser.Page) bool {
	found, reason := g.Detect(ctx, page)
	if !found {
		return true
	}
	g.publish(Event{Stage: StageDetected, Reason: reason, URL: page.URL()})
	g.log("info", "challenge detected, waiting", map[string]any{"reason": reason})

	cleared := func(ctx context.Context) (bool, error) {
		still, _ := g.Detect(ctx, page)
		return !still, nil
	}

	passive := g.rnd.Duration(g.cfg.PassiveWait.Min(), g.cfg.PassiveWait.Max())
	ok, err := poll.Until(ctx, g.cfg.Poll(), passive, cleared)
	if err != nil {
		return false
	}
	if ok {
		g.bump(func(c *model.ChallengeCounters) { c.AutoPassed++ })
		g.publish(Event{Stage: StageAutoPassed, URL: page.URL()})
		g.log("info", "challenge cleared on its own", nil)
		return true
	}

	x, y := g.clickPoint(ctx, page)
	if err := page.ClickAt(ctx, x, y); err != nil {
		g.log("warn", "challenge click failed", map[string]any{"error": err.Error()})
	} else {
		g.publish(Event{Stage: StageClicked, URL: page.URL()})
	}

	settle := g.rnd.Duration(g.cfg.SettleWait.Min(), g.cfg.SettleWait.Max())
	ok, err = poll.Until(ctx, g.cfg.Poll(), settle, cleared)
	if err != nil {
		return false
	}
	if ok {
		g.bump(func(c *model.ChallengeCounters) { c.ClickPassed++ })
		g.publish(Event{Stage: StageClickPassed, URL: page.URL()})
		g.log("info", "challenge cleared after click", nil)
		return true
	}

	g.bump(func(c *model.ChallengeCounters) { c.Failed++ })
	g.publish(Event{Stage: StageFailed, Reason: reason, URL: page.URL()})
	g.log("warn", "challenge still present, continuing", map[string]any{"reason": reason})
	return false
}

// clickPoint aims at the checkbox on the left edge of the challenge widget if
// it can be found, else at the configured coordinates.
func (g *Gate) clickPoint(ctx context.Context, page browser.Page) (float64, float64) {
	if g.cfg.FrameSelector != "" {
		if box, err := page.Box(ctx, g.cfg.FrameSelector); err == nil && !box.Empty() {
			dx := 28.0
			if box.Width < 2*dx {
				dx = box.Width / 2
			}
			return box.X + dx + float64(g.rnd.Int(-3, 3)), box.Y + box.Height/2 + float64(g.rnd.Int(-3, 3))
		}
	}
	return g.cfg.ClickX, g.cfg.ClickY
}

func (g *Gate) bump(fn func(*model.ChallengeCounters)) {
	g.mu.Lock()
	fn(&g.counters)
	g.mu.Unlock()
}

func (g *Gate) publish(e Event) {
	if g.bus != nil {
		g.bus.Publish(logbus.TypeChallenge, e)
	}
}

func (g *Gate) log(level, msg string, fields map[string]any) {
	if g.bus != nil {
		g.bus.Log(level, msg, fields)
	}
}
