package upperq

import (
	"context"
	"testing"
	"time"
)

func TestWaitReturnsImmediatelyWhenNotHalted(t *testing.T) {
	g := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestHaltThenResumeUnblocksWait(t *testing.T) {
	g := New(nil)
	g.Halt()
	if !g.Halted() {
		t.Fatal("expected Halted() true after Halt")
	}

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- g.Wait(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	g.Resume()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not unblock after Resume")
	}

	if g.Halted() {
		t.Fatal("expected Halted() false after Resume")
	}
}

func TestResumeWithoutHaltIsNoop(t *testing.T) {
	g := New(nil)
	g.Resume()
	if g.Halted() {
		t.Fatal("expected Halted() false")
	}
}

func TestWaitCancelledByContext(t *testing.T) {
	g := New(nil)
	g.Halt()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := g.Wait(ctx); err == nil {
		t.Fatal("expected context deadline error")
	}
}
