package txfifo

import (
	"github.com/ardnew/h2dtx/pkg"
)

// Submit batches buf beneath the currently open message (opening,
// closing, or recycling the tail as needed), copies buf
// into the ring, and returns once the copy is complete — buf may be reused
// by the caller as soon as Submit returns.
//
// The bus is kicked unconditionally, even on failure, since a kick may free
// space (e.g. by prompting a drain of a message the consumer was holding
// onto). If Submit returns pkg.ErrNoSpace, the configured Gate (if any) is
// told to halt the upper queue.
func (e *Engine) Submit(buf []byte, typ PayloadType) error {
	e.mu.Lock()
	err := e.submitLocked(buf, typ)
	e.mu.Unlock()

	e.kick()
	if err == pkg.ErrNoSpace {
		e.halt()
	}
	return err
}

func (e *Engine) submitLocked(buf []byte, typ PayloadType) error {
	if !e.configured {
		return pkg.ErrNotConfigured
	}

	padded := roundUp16(len(buf))
	if padded+HdrBlock > e.maxMessageSize {
		return pkg.ErrPayloadTooLarge
	}
	singleton := typ.isSingleton()

	for {
		if err := e.ensureOpenMessage(padded, singleton); err != nil {
			return err
		}

		pos, err := e.reserve(padded, e.busBlockSize)
		if err == errTailFull {
			if cerr := e.closeOpenMessage(); cerr != nil {
				return cerr
			}
			e.skipTail()
			continue
		}
		if err != nil {
			return err
		}

		dst := e.at(pos, padded)
		n := copy(dst, buf)
		for i := n; i < padded; i++ {
			dst[i] = 0xAD
		}

		h := header(e.at(e.openPos, HdrBlock))
		idx := h.numPls()
		h.setDescriptor(int(idx), uint16(len(buf)), typ)
		h.setNumPls(idx + 1)
		h.setSize(h.size() + uint32(padded))

		if singleton {
			if err := e.closeOpenMessage(); err != nil {
				return err
			}
		}

		return nil
	}
}

// ensureOpenMessage decides whether the currently open message (if any)
// can accept this payload, closing and opening a fresh one when it cannot.
func (e *Engine) ensureOpenMessage(padded int, singleton bool) error {
	if !e.hasOpen {
		return e.openNewMessage()
	}

	h := header(e.at(e.openPos, HdrBlock))
	needsNew := !e.fits() ||
		(singleton && h.numPls() > 0) ||
		int(h.size())+padded > e.maxMessageSize

	if !needsNew {
		return nil
	}

	if err := e.closeOpenMessage(); err != nil {
		return err
	}
	return e.openNewMessage()
}
