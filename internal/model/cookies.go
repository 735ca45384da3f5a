package model

import (
	"net/http"
	"sort"
	"strings"
	"time"
)

type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Expires  int64  `json:"expires,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HttpOnly bool   `json:"httpOnly,omitempty"`
	SameSite string `json:"sameSite,omitempty"`
}

// Expired reports whether the cookie has a past expiry. Session cookies never expire here.
func (c Cookie) Expired(now time.Time) bool {
	return c.Expires > 0 && c.Expires <= now.UnixMilli()
}

// CookiesByDomain groups cookies by their domain without the leading dot.
func CookiesByDomain(in []Cookie) map[string][]Cookie {
	out := make(map[string][]Cookie)
	for _, c := range in {
		d := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
		out[d] = append(out[d], c)
	}
	for d := range out {
		sort.Slice(out[d], func(i, j int) bool { return out[d][i].Name < out[d][j].Name })
	}
	return out
}

// CookiesForHost returns the unexpired cookies whose domain matches host.
func CookiesForHost(in []Cookie, host string, now time.Time) []Cookie {
	host = strings.ToLower(host)
	var out []Cookie
	for _, c := range in {
		if c.Expired(now) {
			continue
		}
		d := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
		if d == "" || d == host || strings.HasSuffix(host, "."+d) {
			out = append(out, c)
		}
	}
	return out
}

func CookiesToHTTP(in []Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			SameSite: sameSiteFromString(c.SameSite),
		}
		if c.Expires > 0 {
			hc.Expires = time.UnixMilli(c.Expires)
		}
		out = append(out, hc)
	}
	return out
}

func sameSiteFromString(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
