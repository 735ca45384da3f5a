package random

import (
	"math/rand"
	"sync"
	"time"
)

// Policy draws every bounded random number the bot uses. A fixed seed makes
// a run reproducible; the browser's dialog goroutine shares it with the
// scheduler, so draws are serialized.
type Policy struct {
	mu   sync.Mutex
	rng  *rand.Rand
	seed int64
}

func New(seed int64) *Policy {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Policy{rng: rand.New(rand.NewSource(seed)), seed: seed}
}

func (p *Policy) Seed() int64 { return p.seed }

// Int returns a uniform integer in [min, max], both ends inclusive.
func (p *Policy) Int(min, max int) int {
	if min > max {
		min, max = max, min
	}
	if min == max {
		return min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return min + p.rng.Intn(max-min+1)
}

func (p *Policy) Float(min, max float64) float64 {
	if min > max {
		min, max = max, min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return min + p.rng.Float64()*(max-min)
}

// Jitter returns base moved by a uniform offset within ±base*percent/100.
// The spread is truncated toward zero.
func (p *Policy) Jitter(base, percent int) int {
	spread := base * percent / 100
	if spread < 0 {
		spread = -spread
	}
	if spread == 0 {
		return base
	}
	return base + p.Int(-spread, spread)
}

func (p *Policy) Duration(min, max time.Duration) time.Duration {
	if min > max {
		min, max = max, min
	}
	if min == max {
		return min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return min + time.Duration(p.rng.Int63n(int64(max-min)+1))
}

func (p *Policy) JitterDuration(base time.Duration, percent int) time.Duration {
	spread := time.Duration(int64(base) * int64(percent) / 100)
	if spread < 0 {
		spread = -spread
	}
	if spread == 0 {
		return base
	}
	return base + p.Duration(-spread, spread)
}

// Chance reports true with the given probability in percent.
func (p *Policy) Chance(percent float64) bool {
	if percent <= 0 {
		return false
	}
	if percent >= 100 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()*100 < percent
}

// Pick returns an index in [0, n). n <= 0 yields 0.
func (p *Policy) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(n)
}
