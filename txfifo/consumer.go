package txfifo

import "github.com/ardnew/h2dtx/pkg"

// TakeNext walks the FIFO from the read cursor, skipping sentinel runs
// and empty non-open records, closes
// the open message if the consumer catches up to it, stamps barker and
// sequence, and returns the transmittable byte range.
//
// ok is false when there is nothing to deliver yet: either the FIFO is
// empty (in which case both cursors are reset to zero) or the only
// remaining record is the still-open message with no payloads in it.
func (e *Engine) TakeNext() (frame []byte, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.configured {
		return nil, false
	}

	for {
		if e.in == e.out {
			e.in, e.out = 0, 0
			return nil, false
		}

		pos := e.out
		h := header(e.at(pos, hdrPrefixSize))

		if h.skip() {
			e.out += uint64(h.runLen())
			continue
		}

		if h.numPls() == 0 {
			if e.hasOpen && pos == e.openPos {
				return nil, false
			}
			e.out += uint64(h.runLen())
			continue
		}

		if e.hasOpen && pos == e.openPos {
			if err := e.closeOpenMessage(); err != nil {
				pkg.LogError(pkg.ComponentEngine, "close at take failed", "err", err)
				return nil, false
			}
			h = header(e.at(pos, hdrPrefixSize))
		}

		// The relocation distance follows from num_pls; see header.offset
		// for why it is not read back from the record.
		movedPos := pos + uint64(HdrBlock-HdrHeaderSize(h.numPls()))
		moved := header(e.at(movedPos, hdrPrefixSize))

		e.msgSizeInFlight = h.runLen()

		seq := e.sequence
		e.sequence++
		moved.setBarker(e.barker)
		moved.setSequence(seq)

		e.stats.observe(moved.numPls(), moved.size())

		return e.at(movedPos, int(moved.size())), true
	}
}

// MarkSent advances the read cursor past the in-flight message,
// normalizes the cursors, and resumes the upper queue. Must be called
// even when the bus reports a failed transfer — the message is then
// simply dropped.
func (e *Engine) MarkSent() {
	e.mu.Lock()
	e.out += uint64(e.msgSizeInFlight)
	e.msgSizeInFlight = 0
	e.normalize()
	e.mu.Unlock()

	e.resume()
}
