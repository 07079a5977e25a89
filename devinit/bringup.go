package devinit

import (
	"context"

	"github.com/ardnew/h2dtx/pkg"
	"github.com/ardnew/h2dtx/txfifo"
)

// DefaultBlockSize is used when the caller has no negotiated bus block
// size of its own to supply.
const DefaultBlockSize = 512

// noopGate satisfies txfifo.Gate for the throwaway engine Bringup drives;
// nothing upstream is waiting on it yet.
type noopGate struct{}

func (noopGate) Halt()   {}
func (noopGate) Resume() {}

// Bringup performs the device reset step: it submits a RESET_COLD control
// message through a throwaway engine wired to bus (which kicks bus), then
// takes that message back out of the engine and marks it sent itself; the
// frame is not written to bus. It returns blockSize, or DefaultBlockSize
// when blockSize is not positive, as the bus block size the caller should
// configure the real engine with; no value is read back from the device.
// Grounded on the teacher's device/stack.go Start() sequence (hal.Init →
// hal.Start() → begin serving).
func Bringup(ctx context.Context, bus txfifo.Bus, blockSize int) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	e := &txfifo.Engine{}
	if err := e.Setup(&txfifo.Config{
		BusBlockSize: blockSize,
		Bus:          bus,
		Gate:         noopGate{},
	}); err != nil {
		return 0, err
	}
	defer e.Release()

	if err := e.Submit(nil, txfifo.PayloadResetCold); err != nil {
		return 0, err
	}
	if _, ok := e.TakeNext(); !ok {
		return 0, pkg.ErrInvariant
	}
	e.MarkSent()

	pkg.LogInfo(pkg.ComponentDevinit, "bringup complete", "blockSize", blockSize)
	return blockSize, nil
}
