package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/time/rate"

	"autominer/internal/config"
	"autominer/internal/logbus"
	"autominer/internal/model"
	"autominer/internal/poll"
	"autominer/internal/random"
)

// Rod drives one stealth tab of a locally launched Chrome.
type Rod struct {
	cfg   config.BrowserConfig
	bus   *logbus.Bus
	human *Human

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	navLimit *rate.Limiter

	width, height float64

	mu       sync.Mutex
	pointer  Point
	handlers map[int]func(Dialog)
	nextID   int
	closed   atomic.Bool
	stopEv   context.CancelFunc
}

// Launch starts Chrome and opens the stealth page. A failure here is the one
// error the process does not survive.
func Launch(ctx context.Context, cfg config.BrowserConfig, userAgent string, rnd *random.Policy, bus *logbus.Bus) (*Rod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	human := NewHuman(rnd, cfg)
	w, h := human.Viewport()

	l := launcher.New().Headless(cfg.Headless).Set("window-size", fmt.Sprintf("%d,%d", w, h))
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.UserDataDir != "" {
		if err := os.MkdirAll(cfg.UserDataDir, 0o755); err != nil {
			return nil, fmt.Errorf("user data dir: %w", err)
		}
		l = l.UserDataDir(cfg.UserDataDir)
	}
	u, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect chrome: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("stealth page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             w,
		Height:            h,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("viewport: %w", err)
	}
	ua := NormalizeDesktopUserAgent(userAgent)
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua, AcceptLanguage: "ko-KR,ko;q=0.9,en;q=0.8"}); err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("user agent: %w", err)
	}

	r := &Rod{
		cfg:      cfg,
		bus:      bus,
		human:    human,
		launcher: l,
		browser:  b,
		page:     page,
		navLimit: rate.NewLimiter(rate.Limit(cfg.NavQPS), cfg.NavBurst),
		width:    float64(w),
		height:   float64(h),
		pointer:  Point{X: float64(w) / 2, Y: float64(h) / 2},
		handlers: make(map[int]func(Dialog)),
	}
	r.watchDialogs()

	if bus != nil {
		bus.Info("browser launched", map[string]any{
			"headless": cfg.Headless,
			"viewport": fmt.Sprintf("%dx%d", w, h),
		})
	}
	return r, nil
}

// watchDialogs dismisses every JavaScript dialog after a short human pause
// and fans it out to registered observers.
func (r *Rod) watchDialogs() {
	evCtx, cancel := context.WithCancel(context.Background())
	r.stopEv = cancel
	wait := r.page.Context(evCtx).EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		d := Dialog{Type: string(e.Type), Message: e.Message, At: time.Now()}
		r.mu.Lock()
		fns := make([]func(Dialog), 0, len(r.handlers))
		for _, fn := range r.handlers {
			fns = append(fns, fn)
		}
		r.mu.Unlock()
		for _, fn := range fns {
			fn(d)
		}
		if r.bus != nil {
			r.bus.Debug("dialog opened", map[string]any{"type": d.Type, "message": d.Message})
		}
		pause := r.human.DialogPause()
		go func() {
			time.Sleep(pause)
			_ = proto.PageHandleJavaScriptDialog{Accept: true}.Call(r.page)
		}()
	})
	go wait()
}

func (r *Rod) OnDialog(fn func(Dialog)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.handlers[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.handlers, id)
		r.mu.Unlock()
	}
}

func (r *Rod) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if r.stopEv != nil {
		r.stopEv()
	}
	err := r.browser.Close()
	r.launcher.Kill()
	return err
}

func (r *Rod) wrap(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if r.closed.Load() {
		return fmt.Errorf("%s: %w", op, ErrDriverClosed)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	msg := err.Error()
	if strings.Contains(msg, "use of closed network connection") || strings.Contains(msg, "websocket: close") {
		return fmt.Errorf("%s: %w: %v", op, ErrDriverClosed, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *Rod) Navigate(ctx context.Context, url string) error {
	if err := r.navLimit.Wait(ctx); err != nil {
		return err
	}
	p := r.page.Context(ctx).Timeout(r.cfg.NavTimeout())
	defer p.CancelTimeout()
	err := rod.Try(func() {
		wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
		if err := p.Navigate(url); err != nil {
			panic(err)
		}
		wait()
	})
	return r.wrap(ctx, "navigate "+url, err)
}

func (r *Rod) URL() string {
	info, err := r.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

func (r *Rod) Title() string {
	info, err := r.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.Title
}

func (r *Rod) HTML(ctx context.Context) (string, error) {
	s, err := r.page.Context(ctx).HTML()
	return s, r.wrap(ctx, "html", err)
}

func (r *Rod) Has(ctx context.Context, selector string) (bool, error) {
	ok, _, err := r.page.Context(ctx).Has(selector)
	return ok, r.wrap(ctx, "has "+selector, err)
}

func (r *Rod) element(ctx context.Context, selector string, timeout time.Duration) (*rod.Element, error) {
	p := r.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()
	el, err := p.Element(selector)
	if err != nil {
		return nil, r.wrap(ctx, "element "+selector, err)
	}
	return el.Context(ctx), nil
}

func (r *Rod) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	p := r.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()
	el, err := p.Element(selector)
	if err != nil {
		return r.wrap(ctx, "wait "+selector, err)
	}
	return r.wrap(ctx, "wait visible "+selector, el.WaitVisible())
}

func (r *Rod) WaitEnabled(ctx context.Context, selector string, timeout time.Duration) error {
	p := r.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()
	el, err := p.Element(selector)
	if err != nil {
		return r.wrap(ctx, "wait "+selector, err)
	}
	return r.wrap(ctx, "wait enabled "+selector, el.WaitEnabled())
}

func (r *Rod) Box(ctx context.Context, selector string) (Box, error) {
	el, err := r.element(ctx, selector, 2*time.Second)
	if err != nil {
		return Box{}, err
	}
	return r.box(ctx, el)
}

func (r *Rod) box(ctx context.Context, el *rod.Element) (Box, error) {
	shape, err := el.Shape()
	if err != nil {
		return Box{}, r.wrap(ctx, "shape", err)
	}
	rect := shape.Box()
	if rect == nil {
		return Box{}, ErrNotFound
	}
	return Box{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}, nil
}

func (r *Rod) Click(ctx context.Context, selector string) error {
	el, err := r.element(ctx, selector, 5*time.Second)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return r.wrap(ctx, "scroll into view", err)
	}
	b, err := r.box(ctx, el)
	if err != nil {
		return err
	}
	aim := r.human.AimPoint(b)
	return r.ClickAt(ctx, aim.X, aim.Y)
}

func (r *Rod) ClickAt(ctx context.Context, x, y float64) error {
	if err := r.moveTo(ctx, Point{X: x, Y: y}); err != nil {
		return err
	}
	if err := poll.Sleep(ctx, r.human.ClickPause()); err != nil {
		return err
	}
	err := r.page.Context(ctx).Mouse.Click(proto.InputMouseButtonLeft, 1)
	return r.wrap(ctx, "click", err)
}

func (r *Rod) moveTo(ctx context.Context, to Point) error {
	r.mu.Lock()
	from := r.pointer
	r.mu.Unlock()

	mouse := r.page.Context(ctx).Mouse
	for _, p := range r.human.Track(from, to) {
		if err := mouse.MoveLinear(proto.NewPoint(p.X, p.Y), 1); err != nil {
			return r.wrap(ctx, "mouse move", err)
		}
		if d := r.human.StepPause(); d > 0 {
			if err := poll.Sleep(ctx, d); err != nil {
				return err
			}
		}
	}
	r.mu.Lock()
	r.pointer = to
	r.mu.Unlock()
	return nil
}

func (r *Rod) Scroll(ctx context.Context, dy float64) error {
	steps := int(abs(dy)/60) + 1
	err := r.page.Context(ctx).Mouse.Scroll(0, dy, steps)
	return r.wrap(ctx, "scroll", err)
}

func (r *Rod) MoveRandom(ctx context.Context) error {
	return r.moveTo(ctx, r.human.Wander(r.width, r.height))
}

func (r *Rod) TypeText(ctx context.Context, selector, text string) error {
	if err := r.Click(ctx, selector); err != nil {
		return err
	}
	p := r.page.Context(ctx)
	for _, ch := range text {
		if err := p.InsertText(string(ch)); err != nil {
			return r.wrap(ctx, "type", err)
		}
		if err := poll.Sleep(ctx, r.human.KeyPause()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rod) Screenshot(ctx context.Context, path string) error {
	b, err := r.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	if err != nil {
		return r.wrap(ctx, "screenshot", err)
	}
	return writeFile(path, b)
}

func (r *Rod) SaveHTML(ctx context.Context, path string) error {
	s, err := r.HTML(ctx)
	if err != nil {
		return err
	}
	return writeFile(path, []byte(s))
}

func writeFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func (r *Rod) Cookies(ctx context.Context) ([]model.Cookie, error) {
	cs, err := r.browser.Context(ctx).GetCookies()
	if err != nil {
		return nil, r.wrap(ctx, "get cookies", err)
	}
	out := make([]model.Cookie, 0, len(cs))
	for _, c := range cs {
		var expires int64
		if !c.Session && c.Expires > 0 {
			expires = int64(float64(c.Expires) * 1000)
		}
		out = append(out, model.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  expires,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
			SameSite: strings.ToLower(string(c.SameSite)),
		})
	}
	return out, nil
}

func (r *Rod) SetCookies(ctx context.Context, cookies []model.Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		switch strings.ToLower(c.SameSite) {
		case "lax":
			p.SameSite = proto.NetworkCookieSameSiteLax
		case "strict":
			p.SameSite = proto.NetworkCookieSameSiteStrict
		case "none":
			p.SameSite = proto.NetworkCookieSameSiteNone
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(float64(c.Expires) / 1000)
		}
		params = append(params, p)
	}
	return r.wrap(ctx, "set cookies", r.browser.Context(ctx).SetCookies(params))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
