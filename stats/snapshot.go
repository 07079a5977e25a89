package stats

import "github.com/ardnew/h2dtx/txfifo"

// Source supplies the live statistics a Snapshot or Collector exports.
type Source interface {
	Stats() txfifo.Stats
}

// Snapshot is a copy of an engine's statistics counters at a point in time,
// independent of the txfifo package so callers outside it don't need to
// import txfifo.Stats directly.
type Snapshot struct {
	PayloadCountMin   uint32
	PayloadCountMax   uint32
	PayloadCountTotal uint64
	MessageSizeMin    uint32
	MessageSizeMax    uint32
	MessageSizeTotal  uint64
	TotalMessages     uint64
}

// From converts a txfifo.Stats value into a Snapshot.
func From(s txfifo.Stats) Snapshot {
	return Snapshot{
		PayloadCountMin:   s.PayloadCountMin,
		PayloadCountMax:   s.PayloadCountMax,
		PayloadCountTotal: s.PayloadCountTotal,
		MessageSizeMin:    s.MessageSizeMin,
		MessageSizeMax:    s.MessageSizeMax,
		MessageSizeTotal:  s.MessageSizeTotal,
		TotalMessages:     s.TotalMessages,
	}
}

// Take reads src's current statistics and returns them as a Snapshot.
func Take(src Source) Snapshot {
	return From(src.Stats())
}
