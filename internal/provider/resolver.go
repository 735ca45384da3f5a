package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"autominer/internal/config"
	"autominer/internal/logbus"
	"autominer/internal/model"
)

// ErrUnreachable is returned when neither the configured site nor any of its
// numbered successors answered.
var ErrUnreachable = errors.New("provider: no reachable site")

var domainNumber = regexp.MustCompile(`\d+`)

// Resolver finds the live address of a site whose numbered domain rotates,
// e.g. example469.com today and example470.com next week.
type Resolver struct {
	cfg    config.SiteConfig
	bus    *logbus.Bus
	client *resty.Client
	jar    *cookiejar.Jar
}

func New(cfg config.SiteConfig, bus *logbus.Bus) (*Resolver, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := resty.New().
		SetTimeout(cfg.Timeout()).
		SetCookieJar(jar).
		SetRetryCount(cfg.Retry.Count).
		SetRetryWaitTime(cfg.Retry.Wait()).
		SetRetryMaxWaitTime(cfg.Retry.MaxWait()).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return true
			}
			return r.StatusCode() >= 500 && !challenged(r)
		})
	if cfg.Proxy != "" {
		client.SetProxy(cfg.Proxy)
	}
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if bus != nil {
			bus.Debug("probe request", map[string]any{"url": req.URL})
		}
		return nil
	})
	return &Resolver{cfg: cfg, bus: bus, client: client, jar: jar}, nil
}

// UseCookies seeds the probe with a saved jar so a cleared challenge stays
// cleared.
func (r *Resolver) UseCookies(cookies []model.Cookie) {
	for domain, list := range model.CookiesByDomain(cookies) {
		if domain == "" {
			continue
		}
		r.jar.SetCookies(&url.URL{Scheme: "https", Host: domain, Path: "/"}, model.CookiesToHTTP(list))
		r.jar.SetCookies(&url.URL{Scheme: "http", Host: domain, Path: "/"}, model.CookiesToHTTP(list))
	}
}

// Resolve returns scheme://host of the first candidate that answers,
// following redirects to wherever the site now lives.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	candidates, err := Candidates(r.cfg.BaseURL, r.cfg.ProbeSpan)
	if err != nil {
		return "", err
	}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		live, err := r.probe(ctx, c)
		if err != nil {
			r.log("info", "site candidate unreachable", map[string]any{"url": c, "error": err.Error()})
			continue
		}
		if live != r.cfg.BaseURL {
			r.log("warn", "site moved", map[string]any{"configured": r.cfg.BaseURL, "resolved": live})
		}
		return live, nil
	}
	return "", fmt.Errorf("%w: tried %s", ErrUnreachable, strings.Join(candidates, ", "))
}

func (r *Resolver) probe(ctx context.Context, base string) (string, error) {
	resp, err := r.client.R().SetContext(ctx).Get(base + "/")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() >= 400 && !challenged(resp) {
		return "", fmt.Errorf("status %d", resp.StatusCode())
	}
	final := base
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		u := raw.Request.URL
		final = u.Scheme + "://" + u.Host
	}
	return final, nil
}

// challenged reports an anti-bot interstitial. The site is up behind it; the
// browser's challenge gate deals with it later.
func challenged(resp *resty.Response) bool {
	h := resp.Header()
	if strings.EqualFold(h.Get("Cf-Mitigated"), "challenge") {
		return true
	}
	code := resp.StatusCode()
	return strings.EqualFold(h.Get("Server"), "cloudflare") &&
		(code == http.StatusForbidden || code == http.StatusServiceUnavailable)
}

// Candidates lists base followed by span successors made by bumping the last
// number in its host. A host without a number, or an IP, yields only base.
func Candidates(base string, span int) ([]string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", base)
	}
	root := u.Scheme + "://" + u.Host
	out := []string{root}

	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return out, nil
	}
	locs := domainNumber.FindAllStringIndex(host, -1)
	if len(locs) == 0 {
		return out, nil
	}
	loc := locs[len(locs)-1]
	n, err := strconv.Atoi(host[loc[0]:loc[1]])
	if err != nil {
		return out, nil
	}
	port := u.Port()
	for i := 1; i <= span; i++ {
		next := host[:loc[0]] + strconv.Itoa(n+i) + host[loc[1]:]
		if port != "" {
			next += ":" + port
		}
		out = append(out, u.Scheme+"://"+next)
	}
	return out, nil
}

func (r *Resolver) log(level, msg string, fields map[string]any) {
	if r.bus != nil {
		r.bus.Log(level, msg, fields)
	}
}
