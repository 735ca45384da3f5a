package browser

import (
	"math"
	"time"

	"autominer/internal/config"
	"autominer/internal/random"
)

type Point struct {
	X, Y float64
}

// Human shapes pointer paths and input pauses so clicks do not teleport.
type Human struct {
	rnd *random.Policy
	cfg config.BrowserConfig
}

func NewHuman(rnd *random.Policy, cfg config.BrowserConfig) *Human {
	return &Human{rnd: rnd, cfg: cfg}
}

// Track returns a cubic bezier path from -> to, endpoints included. The two
// control points sit at a quarter and three quarters of the way with a
// random sideways bend proportional to the distance.
func (h *Human) Track(from, to Point) []Point {
	dist := math.Hypot(to.X-from.X, to.Y-from.Y)
	steps := h.cfg.MouseSteps
	if steps <= 0 {
		steps = 25
	}
	if s := int(dist/12) + 5; s < steps {
		steps = s
	}

	bend := dist * 0.15
	nx, ny := 0.0, 0.0
	if dist > 0 {
		nx, ny = -(to.Y-from.Y)/dist, (to.X-from.X)/dist
	}
	b1 := h.rnd.Float(-bend, bend)
	b2 := h.rnd.Float(-bend, bend)
	c1 := Point{from.X + (to.X-from.X)/4 + nx*b1, from.Y + (to.Y-from.Y)/4 + ny*b1}
	c2 := Point{from.X + (to.X-from.X)*3/4 + nx*b2, from.Y + (to.Y-from.Y)*3/4 + ny*b2}

	track := make([]Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		track = append(track, Point{
			X: bezier(t, from.X, c1.X, c2.X, to.X),
			Y: bezier(t, from.Y, c1.Y, c2.Y, to.Y),
		})
	}
	return track
}

func bezier(t, p0, p1, p2, p3 float64) float64 {
	u := 1 - t
	return u*u*u*p0 + 3*u*u*t*p1 + 3*u*t*t*p2 + t*t*t*p3
}

// AimPoint picks a point near the centre of b, offset by at most
// ClickOffset pixels and never outside the box.
func (h *Human) AimPoint(b Box) Point {
	cx, cy := b.Center()
	off := h.cfg.ClickOffset
	x := cx + float64(h.rnd.Int(-off, off))
	y := cy + float64(h.rnd.Int(-off, off))
	return Point{X: clamp(x, b.X+1, b.X+b.Width-1), Y: clamp(y, b.Y+1, b.Y+b.Height-1)}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(hi, v))
}

func (h *Human) ClickPause() time.Duration {
	return h.rnd.Duration(h.cfg.ClickDelay.Min(), h.cfg.ClickDelay.Max())
}

func (h *Human) PageLoadPause() time.Duration {
	return h.rnd.Duration(h.cfg.PageLoad.Min(), h.cfg.PageLoad.Max())
}

func (h *Human) DialogPause() time.Duration {
	return h.rnd.Duration(h.cfg.DialogDelay.Min(), h.cfg.DialogDelay.Max())
}

func (h *Human) KeyPause() time.Duration {
	return h.rnd.Duration(h.cfg.TypeDelay.Min(), h.cfg.TypeDelay.Max())
}

// StepPause is the gap between two pointer moves: usually none, sometimes a
// couple of milliseconds.
func (h *Human) StepPause() time.Duration {
	if h.rnd.Int(0, 9) > 7 {
		return time.Duration(h.rnd.Int(1, 3)) * time.Millisecond
	}
	return 0
}

// Wander returns a random point inside a width x height viewport, away from the edges.
func (h *Human) Wander(width, height float64) Point {
	return Point{
		X: h.rnd.Float(width*0.1, width*0.9),
		Y: h.rnd.Float(height*0.1, height*0.9),
	}
}

func (h *Human) ScrollDelta() float64 {
	d := float64(h.rnd.Int(120, 600))
	if h.rnd.Chance(25) {
		d = -d
	}
	return d
}

func (h *Human) Viewport() (int, int) {
	v := h.cfg.Viewport
	return h.rnd.Int(v.MinWidth, v.MaxWidth), h.rnd.Int(v.MinHeight, v.MaxHeight)
}
