package txfifo

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two producers submit concurrently while a single
// consumer drains in the background. Every payload must be delivered
// exactly once, payloads from the same producer must arrive in the order
// that producer submitted them, and no payload's bytes may be corrupted by
// the header-relocation that happens under the other producer's nose.
//
// Submit and TakeNext/MarkSent are safe to call concurrently: Engine holds
// a single mutex across all state and only releases it to kick the bus or
// resume the gate, so this exercises that contract directly rather than
// taking it on faith.
func TestConcurrentProducersSingleConsumerDeliversEveryPayloadInOrder(t *testing.T) {
	e, _, _ := newTestEngine(t, 256)

	const perProducer = 100
	const payloadSize = 16

	// Each payload encodes (producerID, seq) in its first 8 bytes so the
	// consumer can verify per-producer ordering and completeness without
	// tracking anything beyond the bytes it reads back.
	encode := func(producer, seq int) []byte {
		buf := make([]byte, payloadSize)
		binary.LittleEndian.PutUint32(buf[0:4], uint32(producer))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(seq))
		return buf
	}

	var wg sync.WaitGroup
	produce := func(producer int) {
		defer wg.Done()
		for seq := 0; seq < perProducer; seq++ {
			buf := encode(producer, seq)
			for {
				err := e.Submit(buf, PayloadData)
				if err == nil {
					break
				}
				// Backpressure: give the consumer goroutine a chance to
				// drain before retrying the same payload.
			}
		}
	}

	done := make(chan struct{})
	seen := make(map[int][]int) // producer -> seqs in delivery order
	var seenMu sync.Mutex

	var consumeWg sync.WaitGroup
	consumeWg.Add(1)
	go func() {
		defer consumeWg.Done()
		total := 0
		for total < 2*perProducer {
			// done is checked before TakeNext: an empty result only means
			// the ring is drained if every Submit had already returned.
			finished := false
			select {
			case <-done:
				finished = true
			default:
			}
			frame, ok := e.TakeNext()
			if !ok {
				if finished {
					return
				}
				continue
			}
			f := ParseFrame(frame)
			off := HdrHeaderSize(f.NumPls)
			for _, d := range f.Descriptors {
				p := int(binary.LittleEndian.Uint32(frame[off : off+4]))
				s := int(binary.LittleEndian.Uint32(frame[off+4 : off+8]))
				seenMu.Lock()
				seen[p] = append(seen[p], s)
				seenMu.Unlock()
				off += roundUp16(int(d.Length))
				total++
			}
			e.MarkSent()
		}
	}()

	wg.Add(2)
	go produce(0)
	go produce(1)
	wg.Wait()
	close(done)
	consumeWg.Wait()

	require.Len(t, seen, 2, "expected payloads from exactly two producers")
	for producer := 0; producer < 2; producer++ {
		seqs := seen[producer]
		require.Len(t, seqs, perProducer, "producer %d: wrong delivery count", producer)
		for i, s := range seqs {
			assert.Equalf(t, i, s, "producer %d: out-of-order delivery at position %d", producer, i)
		}
	}

	e.mu.Lock()
	checkInvariants(t, e)
	e.mu.Unlock()
}
