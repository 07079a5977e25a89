package bus

import "errors"

// ErrWouldBlock indicates a non-blocking transport write could not complete
// without blocking; the caller should retry once the transport reports
// writability again. Mirrors the non-blocking control-flow signaling
// pattern used for framed byte-oriented transports elsewhere in the
// ecosystem rather than a bespoke TX engine convention.
var ErrWouldBlock = errors.New("bus: would block")

// ErrMore indicates a transport read produced a complete frame but more
// bytes are already buffered and decodable without another syscall; callers
// that loop on read should keep draining instead of going back to the
// underlying reader.
var ErrMore = errors.New("bus: more data buffered")

// Source is the subset of a txfifo.Engine a bus transport pulls batched
// messages from. It is defined locally, rather than importing the concrete
// *txfifo.Engine type, so a transport can be driven by a fake in tests.
type Source interface {
	TakeNext() (frame []byte, ok bool)
	MarkSent()
}
