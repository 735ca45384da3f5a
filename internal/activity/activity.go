// Package activity holds the game attempts the scheduler runs: mining, raid
// and the idle fillers. Each attempt owns the page only for its own duration.
package activity

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"autominer/internal/browser"
	"autominer/internal/challenge"
	"autominer/internal/logbus"
	"autominer/internal/poll"
	"autominer/internal/provider"
	"autominer/internal/random"
)

// Env is what every activity shares: where the site lives and how to behave
// on it.
type Env struct {
	// Site is the current site origin. Navigation moves it when the site
	// redirects to the next numbered domain.
	Site  *provider.Origin
	Human *browser.Human
	Gate  *challenge.Gate
	Bus   *logbus.Bus
	Rand  *random.Policy
	// Sleep defaults to poll.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
	// PollInterval paces feedback polling; 500ms when zero.
	PollInterval time.Duration
}

func (e *Env) pollInterval() time.Duration {
	if e.PollInterval > 0 {
		return e.PollInterval
	}
	return 500 * time.Millisecond
}

func (e *Env) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	return poll.Sleep(ctx, d)
}

// Abs resolves a site path or a list href against the base URL.
func (e *Env) Abs(ref string) string {
	base := e.Site.String()
	if ref == "" {
		return base
	}
	u, err := url.Parse(ref)
	if err != nil {
		return base + "/" + strings.TrimLeft(ref, "/")
	}
	if u.IsAbs() {
		return ref
	}
	b, err := url.Parse(base + "/")
	if err != nil {
		return base + "/" + strings.TrimLeft(ref, "/")
	}
	return b.ResolveReference(u).String()
}

// open navigates, lingers like a reader would, then waits out a challenge.
// A challenge that does not clear is logged and the caller carries on.
func (e *Env) open(ctx context.Context, page browser.Page, target string) error {
	if err := page.Navigate(ctx, target); err != nil {
		return err
	}
	if to, moved := e.Site.Follow(browser.HostOf(page.URL())); moved {
		e.Bus.Warn("site moved", map[string]any{"requested": target, "now": to})
	}
	if err := e.sleep(ctx, e.Human.PageLoadPause()); err != nil {
		return err
	}
	if !e.Gate.Await(ctx, page) {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.Bus.Warn("challenge not cleared, continuing", map[string]any{"url": target})
	}
	return nil
}

// fault filters an error down to what must leave the attempt: a dead driver
// or a stop request. Everything else becomes an unsuccessful result.
func fault(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if browser.IsFatal(err) || errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// dialogs collects alerts raised while an attempt is in flight.
type dialogs struct {
	ch     chan browser.Dialog
	cancel func()
}

func watchDialogs(page browser.Page) *dialogs {
	d := &dialogs{ch: make(chan browser.Dialog, 8)}
	d.cancel = page.OnDialog(func(dl browser.Dialog) {
		select {
		case d.ch <- dl:
		default:
		}
	})
	return d
}

// drain drops alerts left over from navigation so only the attempt's own
// feedback is judged.
func (d *dialogs) drain() {
	for {
		select {
		case <-d.ch:
		default:
			return
		}
	}
}

// wait returns the first alert within window, or false when none came.
func (d *dialogs) wait(ctx context.Context, window time.Duration) (browser.Dialog, bool, error) {
	timer := time.NewTimer(window)
	defer timer.Stop()
	select {
	case dl := <-d.ch:
		return dl, true, nil
	case <-timer.C:
		return browser.Dialog{}, false, nil
	case <-ctx.Done():
		return browser.Dialog{}, false, ctx.Err()
	}
}
