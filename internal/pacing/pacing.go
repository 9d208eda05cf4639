// Package pacing inserts randomized delays between automated actions so the
// target site sees human-paced traffic. Flows name a Range per step; the
// Pacer scales and samples it.
package pacing

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Range is a closed delay interval.
type Range struct {
	Min, Max time.Duration
}

func Between(minMs, maxMs int) Range {
	return Range{Min: time.Duration(minMs) * time.Millisecond, Max: time.Duration(maxMs) * time.Millisecond}
}

// Step ranges used by the flows.
var (
	AfterNavigate   = Between(1200, 2000)
	AfterSearchLoad = Between(2000, 3000)
	AfterMenu       = Between(800, 1400)
	AfterDropdown   = Between(600, 1200)
	AfterConnect    = Between(800, 1500)
	BeforeSend      = Between(600, 1100)
	AfterSend       = Between(800, 1300)
	AfterNote       = Between(800, 1400)
	AfterInvite     = Between(1000, 1800)
	BetweenProfiles = Between(1200, 2000)
	AfterScroll     = Between(1500, 2500)
	AfterGuard      = Between(1000, 1500)
	AfterComposer   = Between(800, 1400)
	BeforeTyping    = Between(300, 700)
	AfterTyping     = Between(800, 1200)
	BetweenChecks   = Between(1000, 1600)
)

// Pacer samples delays. A Scale of 0 disables sleeping.
type Pacer struct {
	Scale float64

	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration)
}

func New(scale float64) *Pacer {
	return &Pacer{
		Scale: scale,
		rng:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		sleep: sleepCtx,
	}
}

// Off is a pacer that never sleeps.
func Off() *Pacer { return New(0) }

// WithSleeper replaces the sleep function; tests use it to record delays.
func (p *Pacer) WithSleeper(fn func(ctx context.Context, d time.Duration)) *Pacer {
	p.sleep = fn
	return p
}

// Sample draws a delay from r, scaled.
func (p *Pacer) Sample(r Range) time.Duration {
	if p == nil || p.Scale <= 0 {
		return 0
	}
	lo, hi := r.Min, r.Max
	if hi < lo {
		hi = lo
	}
	d := lo
	if hi > lo {
		p.mu.Lock()
		d += time.Duration(p.rng.Int64N(int64(hi-lo) + 1))
		p.mu.Unlock()
	}
	return time.Duration(float64(d) * p.Scale)
}

// Wait sleeps for a sampled delay, returning early if ctx is done.
func (p *Pacer) Wait(ctx context.Context, r Range) {
	d := p.Sample(r)
	if d <= 0 {
		return
	}
	p.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
