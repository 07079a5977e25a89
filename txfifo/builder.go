package txfifo

import (
	"github.com/ardnew/h2dtx/pkg"
)

// openNewMessage reserves a full HdrBlock, recycling the tail once if
// necessary, and zero-fills it.
func (e *Engine) openNewMessage() error {
	pos, err := e.reserve(HdrBlock, 0)
	if err == errTailFull {
		e.skipTail()
		pos, err = e.reserve(HdrBlock, 0)
	}
	if err != nil {
		e.hasOpen = false
		return err
	}

	block := e.at(pos, HdrBlock)
	clear(block)
	header(block).setSize(HdrBlock)

	e.hasOpen = true
	e.openPos = pos

	pkg.LogDebug(pkg.ComponentBuilder, "message opened", "pos", pos)
	return nil
}

// fits reports whether the open message can accept another descriptor.
func (e *Engine) fits() bool {
	h := header(e.at(e.openPos, HdrBlock))
	return h.numPls() < PldMax
}

// closeOpenMessage relocates the populated header prefix forward to sit
// flush against the payloads, then pads the message to a multiple of the
// configured bus block size.
//
// Idempotent over sentinels: if the open slot somehow already carries the
// skip bit (defensive; should not normally occur), it is simply cleared.
// An open message with no payloads is marked as a sentinel and not padded.
func (e *Engine) closeOpenMessage() error {
	if !e.hasOpen {
		return nil
	}
	pos := e.openPos

	hd := header(e.at(pos, hdrPrefixSize))
	if hd.skip() {
		e.hasOpen = false
		return nil
	}

	numPls := hd.numPls()
	origSize := hd.size()

	// A message with no payloads has nothing to deliver and no padding
	// room reserved after it; it is turned into a sentinel run instead.
	if numPls == 0 {
		hd.setSize(origSize | skipFlag)
		e.hasOpen = false
		return nil
	}

	hdrReal := roundUp16(hdrPrefixSize + int(numPls)*pldDescSize)
	offset := HdrBlock - hdrReal
	hd.setOffset(uint16(offset))

	src := e.at(pos, hdrReal)
	dst := e.at(pos+uint64(offset), hdrReal)
	copy(dst, src) // safe for overlapping regions of the same backing array

	moved := header(dst[:hdrPrefixSize])
	moved.setSize(origSize - uint32(offset))

	aligned := roundUpBlock(moved.size(), e.busBlockSize)
	pad := aligned - moved.size()

	if pad > 0 {
		padPos, err := e.reserve(int(pad), 0)
		if err != nil {
			// Every payload append leaves bus_block_size of contiguous
			// free space after it, so this reservation is supposed to be
			// infallible.
			pkg.LogError(pkg.ComponentBuilder, "padding reservation failed",
				"pad", pad, "err", err)
			return pkg.ErrInvariant
		}
		padBuf := e.at(padPos, int(pad))
		for i := range padBuf {
			padBuf[i] = 0xAD
		}
	}

	moved.setPadding(uint16(pad))
	moved.setSize(moved.size() + pad)
	hd.setSize(origSize + pad)

	e.hasOpen = false

	pkg.LogDebug(pkg.ComponentBuilder, "message closed",
		"pos", pos, "numPls", numPls, "busSize", moved.size(), "pad", pad)

	return nil
}
