package txfifo

import (
	"sync"

	"github.com/ardnew/h2dtx/pkg"
)

// BufSize is the default ring buffer size.
const BufSize = 32 * 1024

// Bus is the notification surface the engine calls after releasing its
// lock. Kick is a best-effort, idempotent, non-reentrant hint that the
// ring may hold new work; the bus driver is expected to call [Engine.TakeNext]
// in response, on its own schedule.
type Bus interface {
	Kick()
}

// Gate is the upper-layer queue backpressure collaborator. The engine calls
// Halt when a producer observes [pkg.ErrNoSpace] and Resume after
// [Engine.MarkSent] completes.
type Gate interface {
	Halt()
	Resume()
}

// Config configures an [Engine]. A nil Config, or zero-valued fields,
// fall back to the documented defaults — the same "optional config struct"
// shape as joeycumines-go-utilpkg/microbatch's BatcherConfig.
type Config struct {
	// BufSize is the ring buffer size in bytes. Defaults to [BufSize] (32 KiB).
	BufSize int

	// BusBlockSize is the bus transfer granularity; every closed,
	// non-sentinel message is padded to a multiple of this value. Required:
	// Setup returns pkg.ErrBusBlockSizeZero if this is <= 0 after defaulting.
	BusBlockSize int

	// MaxMessageSize caps the size of a single open message; once adding a
	// payload would exceed it, the engine closes the current message and
	// opens a fresh one. Defaults to BufSize/2.
	MaxMessageSize int

	// Barker is the constant stamped into every message's barker field at
	// take time. Defaults to [BarkerConst].
	Barker uint32

	// Bus receives Kick notifications. May be nil (no-op).
	Bus Bus

	// Gate receives Halt/Resume backpressure signals. May be nil (no-op).
	Gate Gate
}

// Engine is one TX batching engine, wrapping a single ring buffer plus a
// small amount of per-device state. One Engine instance corresponds to one
// device; multiple devices require multiple independent instances — no
// process-global state is required.
type Engine struct {
	mu sync.Mutex

	buf []byte
	in  uint64
	out uint64

	hasOpen bool
	openPos uint64

	msgSizeInFlight uint32
	sequence        uint32

	busBlockSize   int
	maxMessageSize int
	barker         uint32

	configured bool

	stats Stats

	bus  Bus
	gate Gate
}

// Setup allocates the ring and installs the configuration. It returns
// pkg.ErrAlreadyConfigured if called twice without an intervening Release,
// and pkg.ErrBusBlockSizeZero if cfg (after defaulting) has no bus block
// size.
func (e *Engine) Setup(cfg *Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.configured {
		return pkg.ErrAlreadyConfigured
	}

	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.BufSize <= 0 {
		c.BufSize = BufSize
	}
	if c.BusBlockSize <= 0 {
		return pkg.ErrBusBlockSizeZero
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = c.BufSize / 2
	}
	if c.Barker == 0 {
		c.Barker = BarkerConst
	}

	buf := make([]byte, c.BufSize)
	if buf == nil {
		return pkg.ErrOutOfMemory
	}

	e.buf = buf
	e.in = 0
	e.out = 0
	e.hasOpen = false
	e.openPos = 0
	e.msgSizeInFlight = 0
	e.sequence = 0
	e.busBlockSize = c.BusBlockSize
	e.maxMessageSize = c.MaxMessageSize
	e.barker = c.Barker
	e.bus = c.Bus
	e.gate = c.Gate
	e.stats = newStats()
	e.configured = true

	pkg.LogInfo(pkg.ComponentEngine, "engine configured",
		"bufSize", c.BufSize, "busBlockSize", c.BusBlockSize,
		"maxMessageSize", c.MaxMessageSize)

	return nil
}

// Release frees the ring and resets the engine to an unconfigured state.
func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.buf = nil
	e.in, e.out = 0, 0
	e.hasOpen = false
	e.msgSizeInFlight = 0
	e.sequence = 0
	e.configured = false

	pkg.LogInfo(pkg.ComponentEngine, "engine released")
}

// Stats returns a snapshot of the running statistics.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// at returns the length-byte slice of the ring starting at the physical
// position corresponding to the logical cursor pos. Every caller of at is
// required to have obtained pos from a successful reserve (or a position
// derived from one, such as a moved header's offset), which guarantees
// pos's physical range never wraps past the end of the buffer.
func (e *Engine) at(pos uint64, length int) []byte {
	p := pos % uint64(len(e.buf))
	return e.buf[p : p+uint64(length)]
}

func (e *Engine) kick() {
	if e.bus != nil {
		e.bus.Kick()
	}
}

func (e *Engine) halt() {
	if e.gate != nil {
		e.gate.Halt()
	}
}

func (e *Engine) resume() {
	if e.gate != nil {
		e.gate.Resume()
	}
}
