package upperq

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ardnew/h2dtx/pkg"
)

// Config configures optional resume throttling. A nil *Config, or one with
// a zero ResumeRate, disables throttling: every Resume that ends a halt
// sends a wakeup immediately. The wakeup channel holds one token, so one
// Resume releases at most one blocked Wait.
type Config struct {
	// ResumeRate and ResumeBurst configure a token-bucket limiter so a
	// burst of MarkSent calls collapses into a single resume signal
	// instead of a kick storm the upper queue would otherwise have to
	// debounce itself.
	ResumeRate  rate.Limit
	ResumeBurst int
}

// Gate is the upper-layer queue flow-control collaborator the engine calls:
// Halt when Submit returns ErrNoSpace, Resume after MarkSent. It is
// grounded on the teacher's hal.DeviceHAL.WaitConnect/WaitDisconnect
// channel-based wait pattern in device/hal/fifo/fifo.go: a size-1 buffered
// channel signals the transition, and Wait blocks on it or ctx.Done().
type Gate struct {
	mu       sync.Mutex
	halted   bool
	resumeCh chan struct{}
	limiter  *rate.Limiter
}

// New builds a Gate. cfg may be nil to disable resume throttling.
func New(cfg *Config) *Gate {
	g := &Gate{resumeCh: make(chan struct{}, 1)}
	if cfg != nil && cfg.ResumeRate > 0 {
		burst := cfg.ResumeBurst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(cfg.ResumeRate, burst)
	}
	return g
}

// Halt implements txfifo.Gate: called when Submit returns ErrNoSpace.
func (g *Gate) Halt() {
	g.mu.Lock()
	g.halted = true
	g.mu.Unlock()
	pkg.LogDebug(pkg.ComponentUpperQ, "gate halted")
}

// Resume implements txfifo.Gate: called after MarkSent completes.
func (g *Gate) Resume() {
	g.mu.Lock()
	wasHalted := g.halted
	g.halted = false
	g.mu.Unlock()

	if !wasHalted {
		return
	}
	if g.limiter != nil && !g.limiter.Allow() {
		return
	}
	select {
	case g.resumeCh <- struct{}{}:
	default:
	}
	pkg.LogDebug(pkg.ComponentUpperQ, "gate resumed")
}

// Halted reports whether the gate is currently halted.
func (g *Gate) Halted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.halted
}

// Wait blocks until the gate resumes or ctx is cancelled. If the gate is
// not halted, Wait returns immediately.
func (g *Gate) Wait(ctx context.Context) error {
	if !g.Halted() {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.resumeCh:
		return nil
	}
}
