// Command h2dtxsim runs a loopback demonstration of the TX batching engine:
// a producer goroutine submits synthetic payloads through a txfifo.Engine,
// a SimBus pumps the resulting messages across a net.Pipe, and a reader on
// the far end parses and counts every delivered frame.
//
// Usage:
//
//	go run . [options]
//
// Options:
//
//	-payloads int         number of payloads to submit (default: 1000)
//	-payload-size int     size in bytes of each payload (default: 256)
//	-bus-block-size int   bus_block_size passed to devinit.Bringup (default: 512)
//	-cpuprofile string    write a CPU profile to this path before exiting
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardnew/h2dtx/bus"
	"github.com/ardnew/h2dtx/devinit"
	"github.com/ardnew/h2dtx/pkg"
	"github.com/ardnew/h2dtx/pkg/prof"
	"github.com/ardnew/h2dtx/stats"
	"github.com/ardnew/h2dtx/txfifo"
	"github.com/ardnew/h2dtx/upperq"
)

// countingSink counts every RX message delivered to it; the loopback demo
// has nothing upstream to hand received bytes to, so this stands in for
// whatever consumes the RX path in a real driver.
type countingSink struct{ n int }

func (c *countingSink) Deliver(_ []byte) { c.n++ }

func main() {
	payloads := flag.Int("payloads", 1000, "number of payloads to submit")
	payloadSize := flag.Int("payload-size", 256, "size in bytes of each payload")
	busBlockSize := flag.Int("bus-block-size", 512, "bus block size")
	cpuProfile := flag.String("cpuprofile", "", "write a CPU profile to this path before exiting")
	flag.Parse()

	pkg.SetLogLevel(slog.LevelInfo)

	if *cpuProfile != "" {
		if err := prof.StartCPU(*cpuProfile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer prof.StopCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down...")
		cancel()
	}()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sink := &countingSink{}
	simBus := bus.NewSimBus(server, nil, sink)
	defer simBus.Close()

	negotiated, err := devinit.Bringup(ctx, simBus, *busBlockSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bringup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("negotiated bus_block_size=%d\n", negotiated)

	gate := upperq.New(nil)
	engine := &txfifo.Engine{}
	if err := engine.Setup(&txfifo.Config{
		BusBlockSize: negotiated,
		Bus:          simBus,
		Gate:         gate,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "engine setup failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Release()

	simBus.SetSource(engine)

	collector := stats.NewCollector(engine)
	_ = collector // registered with a metrics registry by a real deployment

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- simBus.Run(ctx) }()

	readErrCh := make(chan error, 1)
	go func() { readErrCh <- readLoop(ctx, client, *payloads) }()

	fmt.Printf("submitting %d payloads of %d bytes...\n", *payloads, *payloadSize)
	buf := make([]byte, *payloadSize)
	for i := 0; i < *payloads; i++ {
		select {
		case <-ctx.Done():
			goto drain
		default:
		}
		for {
			if err := engine.Submit(buf, txfifo.PayloadData); err != nil {
				if waitErr := gate.Wait(ctx); waitErr != nil {
					goto drain
				}
				continue
			}
			break
		}
	}

drain:
	snap := stats.Take(engine)
	fmt.Printf("delivered %d messages, %d payloads total (min/max payload count per message: %d/%d)\n",
		snap.TotalMessages, snap.PayloadCountTotal, snap.PayloadCountMin, snap.PayloadCountMax)

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-runErrCh
	<-readErrCh
}

func readLoop(ctx context.Context, r net.Conn, expectPayloads int) error {
	received := 0
	var hdr [4]byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		r.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		if _, err := readFull(r, hdr[:]); err != nil {
			if os.IsTimeout(err) {
				continue
			}
			return err
		}
		length := int(hdr[0]) | int(hdr[1])<<8 | int(hdr[2])<<16 | int(hdr[3])<<24
		frame := make([]byte, length)
		if _, err := readFull(r, frame); err != nil {
			return err
		}
		f := txfifo.ParseFrame(frame)
		received += int(f.NumPls)
		if received >= expectPayloads {
			return nil
		}
	}
}

func readFull(r net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
