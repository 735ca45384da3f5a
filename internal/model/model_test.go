package model

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLiveTargetIgnoresOrder(t *testing.T) {
	a := Target{URL: "/mine/a", Alive: true}
	b := Target{URL: "/mine/b", Alive: false}

	got, ok := FindLiveTarget([]Target{a, b})
	require.True(t, ok)
	assert.Equal(t, a, got)

	got, ok = FindLiveTarget([]Target{b, a})
	require.True(t, ok)
	assert.Equal(t, a, got)

	_, ok = FindLiveTarget([]Target{b})
	assert.False(t, ok)
}

func TestCookiesForHost(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	in := []Cookie{
		{Name: "cf_clearance", Domain: ".example469.com", Value: "x"},
		{Name: "PHPSESSID", Domain: "www.example469.com", Value: "y"},
		{Name: "old", Domain: ".example469.com", Expires: 10},
		{Name: "other", Domain: "other.com"},
	}
	got := CookiesForHost(in, "www.example469.com", now)
	require.Len(t, got, 2)
	assert.Equal(t, "cf_clearance", got[0].Name)
	assert.Equal(t, "PHPSESSID", got[1].Name)

	grouped := CookiesByDomain(in)
	assert.Len(t, grouped["example469.com"], 2)
	assert.Len(t, grouped["other.com"], 1)
}

func TestCookiesToHTTP(t *testing.T) {
	out := CookiesToHTTP([]Cookie{{Name: "a", Value: "b", SameSite: "Lax", Expires: 2000}})
	require.Len(t, out, 1)
	assert.Equal(t, http.SameSiteLaxMode, out[0].SameSite)
	assert.Equal(t, int64(2000), out[0].Expires.UnixMilli())
}

func TestActivityResultConstructors(t *testing.T) {
	r := Failed(OutcomeNoTarget, "none alive")
	assert.False(t, r.Success)
	assert.Zero(t, r.Reward)

	s := Succeeded(-837, "").WithTarget("/mine/1")
	assert.True(t, s.Success)
	assert.Equal(t, -837, s.Reward)
	assert.Equal(t, "/mine/1", s.Target)
}

func TestConsumed(t *testing.T) {
	assert.True(t, Succeeded(0, "").Consumed())
	assert.True(t, ActivityResult{Reward: -837, Outcome: OutcomeLoss}.Consumed())
	assert.False(t, Failed(OutcomeNoTarget, "").Consumed())
	assert.False(t, Failed(OutcomeCooldownBlocked, "").Consumed())
}
