package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"autominer/internal/model"
)

var (
	// ErrTimeout is returned when a bounded wait for an element ran out.
	ErrTimeout = errors.New("browser: timed out")
	// ErrDriverClosed means the browser process or its connection is gone.
	ErrDriverClosed = errors.New("browser: driver closed")
	// ErrNotFound is returned when a selector matches nothing.
	ErrNotFound = errors.New("browser: element not found")
)

// IsFatal reports whether err means the session cannot continue. Everything
// else is a transient page condition an activity can turn into a result.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDriverClosed)
}

type Dialog struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Box struct {
	X, Y, Width, Height float64
}

func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

func (b Box) Empty() bool { return b.Width <= 0 || b.Height <= 0 }

// Page is the single shared tab the scheduler hands to one activity at a time.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL() string
	Title() string
	HTML(ctx context.Context) (string, error)
	Has(ctx context.Context, selector string) (bool, error)
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// WaitEnabled waits until the control carries no disabled attribute.
	WaitEnabled(ctx context.Context, selector string, timeout time.Duration) error
	Box(ctx context.Context, selector string) (Box, error)
	// Click moves the pointer along a human-like path into the element and clicks it.
	Click(ctx context.Context, selector string) error
	ClickAt(ctx context.Context, x, y float64) error
	Scroll(ctx context.Context, dy float64) error
	MoveRandom(ctx context.Context) error
	TypeText(ctx context.Context, selector, text string) error
	Screenshot(ctx context.Context, path string) error
	SaveHTML(ctx context.Context, path string) error
	// OnDialog registers fn for every JavaScript dialog. Dialogs are dismissed
	// by the driver; fn only observes them.
	OnDialog(fn func(Dialog)) (cancel func())
	Cookies(ctx context.Context) ([]model.Cookie, error)
	SetCookies(ctx context.Context, cookies []model.Cookie) error
}

// HostOf returns scheme://host of a page URL, or "" if it has none.
func HostOf(rawURL string) string {
	i := strings.Index(rawURL, "://")
	if i < 0 {
		return ""
	}
	rest := rawURL[i+3:]
	if j := strings.IndexAny(rest, "/?#"); j >= 0 {
		rest = rest[:j]
	}
	return rawURL[:i+3] + rest
}
