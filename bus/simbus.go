package bus

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"

	"github.com/ardnew/h2dtx/pkg"
)

// simHeaderSize is the length prefix SimBus puts in front of every frame:
// a 4-byte little-endian byte count, the same header-then-payload shape the
// teacher's device/hal/fifo.HAL uses for its own FIFO messages, just
// without the 1-byte message-type discriminator — SimBus carries exactly
// one kind of frame in each direction.
const simHeaderSize = 4

// SimBus is a reference bus transport speaking a length-framed protocol
// over an io.ReadWriter: callers get a working transport for tests and
// loopback examples without depending on a real modem's host interface. A
// net.Pipe, an os.Pipe pair, or an AF_UNIX socket are all valid choices for
// the underlying io.ReadWriter.
type SimBus struct {
	rw   io.ReadWriter
	src  Source
	sink RxSink

	wakeCh    chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once
	running   int32

	writeMu sync.Mutex
}

// NewSimBus builds a SimBus that pumps src's delivered frames over rw and,
// when ReadLoop is run, decodes frames arriving on rw to sink. sink may be
// nil if the caller has no use for the RX path.
func NewSimBus(rw io.ReadWriter, src Source, sink RxSink) *SimBus {
	return &SimBus{
		rw:      rw,
		src:     src,
		sink:    sink,
		wakeCh:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
}

// SetSource rewires the Source Run pulls frames from. It exists so a
// transport can be constructed before the engine it serves (the engine's
// Config needs a Bus, and SimBus needs to be that Bus), breaking the
// construction cycle between txfifo.Engine and bus.SimBus.
func (s *SimBus) SetSource(src Source) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.src = src
}

func (s *SimBus) source() Source {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.src
}

// Kick implements txfifo.Bus: it wakes Run so it drains any newly available
// messages. The size-1 buffered channel coalesces redundant kicks the same
// way the teacher's fifo.HAL coalesces connect/disconnect signals.
func (s *SimBus) Kick() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Run drains messages from src until ctx is cancelled or Close is called.
// Each frame is written length-prefixed to rw; MarkSent is called whether
// or not the write succeeded, since a dropped transfer still frees the
// ring.
func (s *SimBus) Run(ctx context.Context) error {
	atomic.StoreInt32(&s.running, 1)
	defer atomic.StoreInt32(&s.running, 0)

	for {
		src := s.source()
		for src != nil {
			frame, ok := src.TakeNext()
			if !ok {
				break
			}
			if err := s.writeFrame(frame); err != nil {
				pkg.LogWarn(pkg.ComponentBus, "simbus write failed", "err", err)
			}
			src.MarkSent()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closeCh:
			return pkg.ErrClosed
		case <-s.wakeCh:
		}
	}
}

func (s *SimBus) writeFrame(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var hdr [simHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(frame)))
	if _, err := s.rw.Write(hdr[:]); err != nil {
		return err
	}
	_, err := s.rw.Write(frame)
	return err
}

// ReadLoop reads length-framed messages from rw and delivers them to sink
// until ctx is cancelled, a read error occurs, or Close is called. It is
// the RX-path counterpart to Run, kept deliberately simple since it sits
// outside the TX engine's core scope.
func (s *SimBus) ReadLoop(ctx context.Context) error {
	var hdr [simHeaderSize]byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closeCh:
			return pkg.ErrClosed
		default:
		}

		if _, err := io.ReadFull(s.rw, hdr[:]); err != nil {
			return err
		}
		length := binary.LittleEndian.Uint32(hdr[:])
		if length == 0 {
			continue
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(s.rw, buf); err != nil {
			return err
		}
		if s.sink != nil {
			s.sink.Deliver(buf)
		}
	}
}

// Close stops Run and ReadLoop.
func (s *SimBus) Close() error {
	s.closeOnce.Do(func() { close(s.closeCh) })
	return nil
}
