package bus

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/h2dtx/txfifo"
)

var _ txfifo.Bus = (*SimBus)(nil)

type recordingSink struct {
	ch chan []byte
}

func newRecordingSink() *recordingSink { return &recordingSink{ch: make(chan []byte, 16)} }

func (s *recordingSink) Deliver(msg []byte) { s.ch <- msg }

func newEngine(t *testing.T, busBlockSize int, b txfifo.Bus) *txfifo.Engine {
	t.Helper()
	e := &txfifo.Engine{}
	require.NoError(t, e.Setup(&txfifo.Config{BusBlockSize: busBlockSize, Bus: b}))
	t.Cleanup(e.Release)
	return e
}

// TestSimBusDeliversFramesOverPipe drives a real engine through a SimBus
// wrapping a net.Pipe and confirms the peer reading the raw length-framed
// protocol decodes one frame carrying a single DATA descriptor.
func TestSimBusDeliversFramesOverPipe(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sink := newRecordingSink()
	sb := NewSimBus(server, nil, sink)
	defer sb.Close()

	e := newEngine(t, 256, sb)
	sb.SetSource(e)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- sb.Run(ctx) }()

	require.NoError(t, e.Submit([]byte("hello"), txfifo.PayloadData))

	var hdr [simHeaderSize]byte
	readAllT(t, client, hdr[:])
	length := le32(hdr[:])
	frame := make([]byte, length)
	readAllT(t, client, frame)

	f := txfifo.ParseFrame(frame)
	assert.Equal(t, uint16(1), f.NumPls)
	assert.Equal(t, txfifo.PayloadData, f.Descriptors[0].Type)

	cancel()
	select {
	case <-runErrCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func readAllT(t *testing.T, r interface{ Read([]byte) (int, error) }, buf []byte) {
	t.Helper()
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		require.NoError(t, err)
		total += n
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func TestSimBusCloseStopsRun(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	e := &txfifo.Engine{}
	sb := NewSimBus(server, nil, nil)
	require.NoError(t, e.Setup(&txfifo.Config{BusBlockSize: 256, Bus: sb}))
	t.Cleanup(e.Release)
	sb.SetSource(e)

	done := make(chan error, 1)
	go func() { done <- sb.Run(context.Background()) }()

	sb.Close()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after Close")
	}
}
