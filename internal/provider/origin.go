package provider

import (
	"net"
	"net/url"
	"strings"
	"sync"
)

// Origin is the site address the running session talks to. It starts at the
// resolved base and follows the browser when the site sends it to a numbered
// sibling mid-run.
type Origin struct {
	mu   sync.RWMutex
	base string
}

func NewOrigin(base string) *Origin {
	return &Origin{base: strings.TrimRight(base, "/")}
}

func (o *Origin) String() string {
	if o == nil {
		return ""
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.base
}

// Follow moves the origin to pageURL's scheme://host when that host is a
// numbered sibling of the current one. It reports whether the origin changed.
func (o *Origin) Follow(pageURL string) (string, bool) {
	if o == nil {
		return "", false
	}
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return o.String(), false
	}
	next := u.Scheme + "://" + u.Host

	o.mu.Lock()
	defer o.mu.Unlock()
	if next == o.base || !Sibling(o.base, next) {
		return o.base, false
	}
	o.base = next
	return next, true
}

// Sibling reports whether a and b are different hosts that differ only in
// the last number of the host name, like example469.com and example470.com.
func Sibling(a, b string) bool {
	ha, okA := numberedHost(a)
	hb, okB := numberedHost(b)
	if !okA || !okB {
		return false
	}
	return ha.name != hb.name && ha.pattern == hb.pattern
}

type hostKey struct {
	name    string
	pattern string
}

func numberedHost(raw string) (hostKey, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return hostKey{}, false
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return hostKey{}, false
	}
	locs := domainNumber.FindAllStringIndex(host, -1)
	if len(locs) == 0 {
		return hostKey{}, false
	}
	loc := locs[len(locs)-1]
	pattern := u.Scheme + "://" + host[:loc[0]] + "#" + host[loc[1]:]
	if port := u.Port(); port != "" {
		pattern += ":" + port
	}
	return hostKey{name: u.Host, pattern: pattern}, true
}
