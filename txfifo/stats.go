package txfifo

import "math"

// Stats holds the engine's running statistics, updated at take time,
// never at submit or close time.
//
// The min fields are initialized to their maximum representable value so
// that the first observation always wins.
type Stats struct {
	PayloadCountMin   uint32
	PayloadCountMax   uint32
	PayloadCountTotal uint64

	MessageSizeMin   uint32
	MessageSizeMax   uint32
	MessageSizeTotal uint64

	TotalMessages uint64
}

func newStats() Stats {
	return Stats{
		PayloadCountMin: math.MaxUint32,
		MessageSizeMin:  math.MaxUint32,
	}
}

// observe folds one delivered message's payload count and on-wire size
// into the running statistics.
func (s *Stats) observe(numPls uint16, busSize uint32) {
	n := uint32(numPls)
	if n < s.PayloadCountMin {
		s.PayloadCountMin = n
	}
	if n > s.PayloadCountMax {
		s.PayloadCountMax = n
	}
	s.PayloadCountTotal += uint64(n)

	if busSize < s.MessageSizeMin {
		s.MessageSizeMin = busSize
	}
	if busSize > s.MessageSizeMax {
		s.MessageSizeMax = busSize
	}
	s.MessageSizeTotal += uint64(busSize)

	s.TotalMessages++
}
