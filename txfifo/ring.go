package txfifo

import (
	"errors"

	"github.com/ardnew/h2dtx/pkg"
)

// errTailFull signals that the ring has enough total free space but the
// tail segment (from the physical write cursor to the end of the backing
// array) cannot hold the requested run; the caller's policy is to recycle
// the tail with a sentinel (skipTail) and retry once.
var errTailFull = errors.New("txfifo: tail exhausted")

// reserve is a strictly contiguous allocation that never splits a run
// across the ring's wrap point. padReserve is extra
// space the caller wants kept free immediately after the returned run (so
// a later close can append alignment padding without failing); it counts
// against total free space and against the tail check, but the write
// cursor only advances by size.
//
// Returns the logical position of the reserved run, or one of
// pkg.ErrNoSpace / errTailFull.
func (e *Engine) reserve(size, padReserve int) (pos uint64, err error) {
	bufSize := uint64(len(e.buf))
	needed := uint64(size + padReserve)

	free := bufSize - (e.in - e.out)
	if free < needed {
		return 0, pkg.ErrNoSpace
	}

	physIn := e.in % bufSize
	tailFree := bufSize - physIn
	if tailFree >= needed {
		pos = e.in
		e.in += uint64(size)
		return pos, nil
	}

	physOut := e.out % bufSize
	if physOut < physIn {
		return 0, errTailFull
	}
	return 0, pkg.ErrNoSpace
}

// skipTail writes a sentinel header covering the unusable tail remainder
// and advances the write cursor past it, so the next allocation can begin
// at physical offset 0. The precondition tailRemainder >= 16
// always holds because every allocation and padding operation is
// 16-aligned, so the physical write cursor is always at least 16 bytes
// below the end of the buffer whenever tail exhaustion is detected.
func (e *Engine) skipTail() {
	bufSize := uint64(len(e.buf))
	physIn := e.in % bufSize
	tailRemainder := bufSize - physIn

	h := header(e.at(e.in, hdrPrefixSize))
	for i := range h {
		h[i] = 0
	}
	h.setSize(uint32(tailRemainder) | skipFlag)

	pkg.LogDebug(pkg.ComponentRing, "tail recycled", "remainder", tailRemainder)

	e.in += tailRemainder
}

// normalize subtracts whole multiples of the buffer size from both
// cursors (and from the open message's position) so they stay bounded
// while preserving in-out and every modular position.
func (e *Engine) normalize() {
	bufSize := uint64(len(e.buf))
	n := e.out / bufSize
	if n == 0 {
		return
	}
	e.out -= n * bufSize
	e.in -= n * bufSize
	if e.hasOpen {
		e.openPos -= n * bufSize
	}
}
