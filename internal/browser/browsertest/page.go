// Package browsertest provides an in-memory browser.Page for activity and
// scheduler tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"autominer/internal/browser"
	"autominer/internal/model"
)

type Doc struct {
	Title string
	HTML  string
}

// Page serves canned documents by URL. Hooks let a test react to clicks the
// way the site would: open a dialog, append a comment, navigate.
type Page struct {
	mu       sync.Mutex
	docs     map[string]*Doc
	current  string
	navs     []string
	clicks   []string
	points   [][2]float64
	scrolls  int
	moves    int
	typed    map[string]string
	cookies  []model.Cookie
	handlers map[int]func(browser.Dialog)
	nextID   int

	// OnClick runs after a selector click is recorded.
	OnClick func(p *Page, selector string)
	// OnClickAt runs after a coordinate click is recorded.
	OnClickAt func(p *Page, x, y float64)
	// OnNavigate runs after the current URL changes.
	OnNavigate func(p *Page, url string)
	// NavErr makes Navigate to the given URL fail.
	NavErr map[string]error
	// Redirects sends Navigate to the given URL on to another one.
	Redirects map[string]string
	// Fatal makes every call fail as if the driver died.
	Fatal bool
}

func New() *Page {
	return &Page{
		docs:      make(map[string]*Doc),
		typed:     make(map[string]string),
		handlers:  make(map[int]func(browser.Dialog)),
		NavErr:    make(map[string]error),
		Redirects: make(map[string]string),
		current:   "about:blank",
	}
}

func (p *Page) Set(url, title, html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[url] = &Doc{Title: title, HTML: html}
}

// SetCurrent replaces the document of the page the browser is on.
func (p *Page) SetCurrent(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.docs[p.current]
	if !ok {
		d = &Doc{}
		p.docs[p.current] = d
	}
	d.HTML = html
}

func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.docs[p.current]; ok {
		d.Title = title
	}
}

// Emit delivers a dialog to every OnDialog observer, like the real driver.
func (p *Page) Emit(message string) {
	p.mu.Lock()
	fns := make([]func(browser.Dialog), 0, len(p.handlers))
	for _, fn := range p.handlers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	d := browser.Dialog{Type: "alert", Message: message, At: time.Now()}
	for _, fn := range fns {
		fn(d)
	}
}

func (p *Page) Navs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navs...)
}

func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

func (p *Page) Points() [][2]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]float64(nil), p.points...)
}

func (p *Page) Scrolls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolls
}

func (p *Page) Moves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.moves
}

func (p *Page) Typed(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typed[selector]
}

// Calls counts every interaction that touches the page.
func (p *Page) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.navs) + len(p.clicks) + len(p.points) + p.scrolls + p.moves
}

func (p *Page) fatal() error {
	if p.Fatal {
		return browser.ErrDriverClosed
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.fatal(); err != nil {
		return err
	}
	p.mu.Lock()
	p.navs = append(p.navs, url)
	if err := p.NavErr[url]; err != nil {
		p.mu.Unlock()
		return err
	}
	if to, ok := p.Redirects[url]; ok {
		url = to
	}
	p.current = url
	hook := p.OnNavigate
	p.mu.Unlock()
	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Page) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.docs[p.current]; ok {
		return d.Title
	}
	return ""
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := p.fatal(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.docs[p.current]; ok {
		return d.HTML, nil
	}
	return "<html><body></body></html>", nil
}

func (p *Page) find(selector string) (*goquery.Selection, error) {
	html, err := p.HTML(context.Background())
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return doc.Find(selector), nil
}

func (p *Page) Has(ctx context.Context, selector string) (bool, error) {
	sel, err := p.find(selector)
	if err != nil {
		return false, err
	}
	return sel.Length() > 0, nil
}

// WaitVisible does not wait: the document is static between hooks.
func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, err := p.Has(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("wait %s: %w", selector, browser.ErrTimeout)
	}
	return nil
}

// WaitEnabled does not wait either; a disabled control times out at once.
func (p *Page) WaitEnabled(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sel, err := p.find(selector)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return fmt.Errorf("wait %s: %w", selector, browser.ErrTimeout)
	}
	if _, disabled := sel.First().Attr("disabled"); disabled {
		return fmt.Errorf("wait enabled %s: %w", selector, browser.ErrTimeout)
	}
	return nil
}

func (p *Page) Box(ctx context.Context, selector string) (browser.Box, error) {
	sel, err := p.find(selector)
	if err != nil {
		return browser.Box{}, err
	}
	if sel.Length() == 0 {
		return browser.Box{}, browser.ErrNotFound
	}
	if _, hidden := sel.Attr("data-hidden"); hidden {
		return browser.Box{}, nil
	}
	return browser.Box{X: 100, Y: 200, Width: 300, Height: 65}, nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sel, err := p.find(selector)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return fmt.Errorf("click %s: %w", selector, browser.ErrNotFound)
	}
	p.mu.Lock()
	p.clicks = append(p.clicks, selector)
	hook := p.OnClick
	p.mu.Unlock()
	if hook != nil {
		hook(p, selector)
	}
	return nil
}

func (p *Page) ClickAt(ctx context.Context, x, y float64) error {
	if err := p.fatal(); err != nil {
		return err
	}
	p.mu.Lock()
	p.points = append(p.points, [2]float64{x, y})
	hook := p.OnClickAt
	p.mu.Unlock()
	if hook != nil {
		hook(p, x, y)
	}
	return nil
}

func (p *Page) Scroll(ctx context.Context, dy float64) error {
	if err := p.fatal(); err != nil {
		return err
	}
	p.mu.Lock()
	p.scrolls++
	p.mu.Unlock()
	return nil
}

func (p *Page) MoveRandom(ctx context.Context) error {
	if err := p.fatal(); err != nil {
		return err
	}
	p.mu.Lock()
	p.moves++
	p.mu.Unlock()
	return nil
}

func (p *Page) TypeText(ctx context.Context, selector, text string) error {
	if err := p.Click(ctx, selector); err != nil {
		return err
	}
	p.mu.Lock()
	p.typed[selector] += text
	p.mu.Unlock()
	return nil
}

// Screenshot writes a placeholder so callers can assert the file exists.
func (p *Page) Screenshot(ctx context.Context, path string) error {
	if err := p.fatal(); err != nil {
		return err
	}
	return write(path, []byte("\x89PNG fake"))
}

func (p *Page) SaveHTML(ctx context.Context, path string) error {
	html, err := p.HTML(ctx)
	if err != nil {
		return err
	}
	return write(path, []byte(html))
}

func write(path string, b []byte) error {
	if path == "" {
		return errors.New("browsertest: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func (p *Page) OnDialog(fn func(browser.Dialog)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}
}

func (p *Page) Cookies(ctx context.Context) ([]model.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Cookie(nil), p.cookies...), nil
}

func (p *Page) SetCookies(ctx context.Context, cookies []model.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = append([]model.Cookie(nil), cookies...)
	return nil
}

var _ browser.Page = (*Page)(nil)
