package txfifo

import "encoding/binary"

// PldMax is the maximum number of payload descriptors a single TX message
// may carry.
const PldMax = 12

// hdrPrefixSize is the fixed portion of every message header: size,
// num_pls, the dual-purpose offset/padding field, barker, and sequence.
const hdrPrefixSize = 16

// pldDescSize is the size in bytes of one payload descriptor.
const pldDescSize = 4

// HdrBlock is the header region reserved when a message is opened: the
// 16-byte prefix plus PldMax descriptor slots. It is always reserved in
// full so that appending a descriptor never shifts payload bytes; it is
// shrunk down to hdr_real bytes when the message is closed.
const HdrBlock = hdrPrefixSize + PldMax*pldDescSize // 64

// alignPayload is the alignment, in bytes, that every payload (and every
// in-FIFO run) is padded to.
const alignPayload = 16

// skipFlag marks an in-FIFO run as a sentinel to be skipped by the
// consumer; it is never delivered to the bus.
const skipFlag uint32 = 0x8000_0000

// BarkerConst is the fixed constant stamped into a message's barker field
// at take time. It has no meaning beyond framing identification; the value
// below is the little-endian encoding of the ASCII bytes "H2DP"
// ("host-to-device preview"), chosen as an arbitrary but recognizable
// pattern and not tied to any specific device register.
const BarkerConst uint32 = 0x50443248

// PayloadType identifies the kind of a single payload. Only the two reset
// types carry special handling in the core: a reset payload is always the
// sole occupant of its message.
type PayloadType uint16

const (
	// PayloadData is an ordinary network-packet payload.
	PayloadData PayloadType = 0x00
	// PayloadControl is a control-frame payload that carries no special
	// singleton requirement.
	PayloadControl PayloadType = 0x01
	// PayloadResetCold forces the payload to ship alone in its message.
	PayloadResetCold PayloadType = 0x10
	// PayloadResetWarm forces the payload to ship alone in its message.
	PayloadResetWarm PayloadType = 0x11
)

// isSingleton reports whether t must ship as the sole payload of its
// message.
func (t PayloadType) isSingleton() bool {
	return t == PayloadResetCold || t == PayloadResetWarm
}

// header is a byte-offset view over a message header's fixed prefix (and,
// when the slice is long enough, its descriptor table). It never overlaps
// a typed Go struct with the ring's backing array; every field access goes
// through explicit little-endian accessors, matching the byte-offset
// access the teacher's device/hal/fifo.HAL uses for its own wire header
// (binary.LittleEndian.Uint16 on a raw []byte) rather than casting the
// buffer to a struct pointer.
type header []byte

// size returns the raw size field, including the skip bit if set.
func (h header) size() uint32 { return binary.LittleEndian.Uint32(h[0:4]) }

func (h header) setSize(v uint32) { binary.LittleEndian.PutUint32(h[0:4], v) }

// skip reports whether this run is a sentinel to be skipped.
func (h header) skip() bool { return h.size()&skipFlag != 0 }

// runLen is the size field with the skip bit masked off: the number of
// bytes this run occupies in the ring, regardless of whether it is a
// sentinel, an open message, a closed message, or the moved (transmittable)
// header of a closed message.
func (h header) runLen() uint32 { return h.size() &^ skipFlag }

func (h header) numPls() uint16 { return binary.LittleEndian.Uint16(h[4:6]) }

func (h header) setNumPls(v uint16) { binary.LittleEndian.PutUint16(h[4:6], v) }

// offset and padding alias the same two bytes (offset 6:8). When a message
// is closed, that slot at the record's original (unmoved) address is set to
// the distance to the relocated header, and the *moved* copy's same byte
// range is then set to the padding length. With nine or more descriptors
// hdr_real is the full HdrBlock, the distance is zero, the two headers are
// the same bytes, and the slot ends up holding the padding length; readers
// of a closed record therefore compute the distance as
// HdrBlock - HdrHeaderSize(num_pls) instead of reading it back. The two
// accessor names exist only to make call sites self-documenting about which
// phase they operate in — see [Engine.closeOpenMessage].
func (h header) offset() uint16 { return binary.LittleEndian.Uint16(h[6:8]) }

func (h header) setOffset(v uint16) { binary.LittleEndian.PutUint16(h[6:8], v) }

func (h header) padding() uint16 { return h.offset() }

func (h header) setPadding(v uint16) { h.setOffset(v) }

func (h header) barker() uint32 { return binary.LittleEndian.Uint32(h[8:12]) }

func (h header) setBarker(v uint32) { binary.LittleEndian.PutUint32(h[8:12], v) }

func (h header) sequence() uint32 { return binary.LittleEndian.Uint32(h[12:16]) }

func (h header) setSequence(v uint32) { binary.LittleEndian.PutUint32(h[12:16], v) }

// descriptor reads the i'th payload descriptor: payload length and type.
// The caller must ensure the header slice is long enough (HdrBlock before
// a message is closed, hdrReal bytes after).
func (h header) descriptor(i int) (length uint16, typ PayloadType) {
	base := hdrPrefixSize + i*pldDescSize
	length = binary.LittleEndian.Uint16(h[base : base+2])
	typ = PayloadType(binary.LittleEndian.Uint16(h[base+2 : base+4]))
	return length, typ
}

func (h header) setDescriptor(i int, length uint16, typ PayloadType) {
	base := hdrPrefixSize + i*pldDescSize
	binary.LittleEndian.PutUint16(h[base:base+2], length)
	binary.LittleEndian.PutUint16(h[base+2:base+4], uint16(typ))
}

// roundUp16 rounds n up to the next multiple of 16.
func roundUp16(n int) int {
	return (n + alignPayload - 1) &^ (alignPayload - 1)
}

// roundUpBlock rounds n up to the next multiple of block (block > 0).
func roundUpBlock(n uint32, block int) uint32 {
	b := uint32(block)
	return (n + b - 1) / b * b
}

// Descriptor is the parsed form of one on-wire payload descriptor.
type Descriptor struct {
	Length uint16
	Type   PayloadType
}

// Frame is the parsed form of one frame returned by [Engine.TakeNext]: the
// fixed header fields plus the payload descriptor table. It is provided so
// bus drivers and tests can inspect a delivered frame without hand-rolling
// the little-endian layout themselves.
type Frame struct {
	Size       uint32
	NumPls     uint16
	Padding    uint16
	Barker     uint32
	Sequence   uint32
	Descriptors []Descriptor
}

// ParseFrame decodes the header and descriptor table of a frame as returned
// by [Engine.TakeNext]. It does not copy payload bytes; within frame the
// payloads begin at HdrHeaderSize(NumPls).
func ParseFrame(frame []byte) Frame {
	h := header(frame)
	n := h.numPls()
	f := Frame{
		Size:     h.size(),
		NumPls:   n,
		Padding:  h.padding(),
		Barker:   h.barker(),
		Sequence: h.sequence(),
	}
	if int(n) > 0 && len(frame) >= hdrPrefixSize+int(n)*pldDescSize {
		f.Descriptors = make([]Descriptor, n)
		for i := range f.Descriptors {
			length, typ := h.descriptor(i)
			f.Descriptors[i] = Descriptor{Length: length, Type: typ}
		}
	}
	return f
}

// HdrHeaderSize returns hdr_real for a message with numPls descriptors:
// the 16-byte prefix plus the descriptor table, rounded up to 16 bytes —
// the offset at which payload bytes begin within a moved (transmittable)
// frame.
func HdrHeaderSize(numPls uint16) int {
	return roundUp16(hdrPrefixSize + int(numPls)*pldDescSize)
}
