//go:build linux

package bus

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ardnew/h2dtx/pkg"
)

// LinuxBus is a bus transport over a raw file descriptor (a character
// device, socket, or FIFO fd handed to us by whatever connects to the
// modem's host interface), driven by epoll instead of blocking reads and
// writes. It replaces the teacher's host/hal/linux/poller.go, which drives
// epoll through bare syscall numbers and unsafe.Pointer arithmetic
// (epollCreate1/epollCtl/epollWait via syscall.Syscall6), with the typed
// golang.org/x/sys/unix wrappers for the same three calls plus an eventfd
// wakeup, matching the library the rest of the ecosystem reaches for
// instead of hand-rolled syscall numbers.
type LinuxBus struct {
	fd     int
	src    Source
	sink   RxSink
	epfd   int
	wakefd int

	mu        sync.Mutex
	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewLinuxBus wires a transport around fd (already open, non-blocking).
// The caller owns fd's lifetime up to Close, which only tears down the
// epoll instance and the wakeup eventfd, not fd itself.
func NewLinuxBus(fd int, src Source, sink RxSink) (*LinuxBus, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}

	lb := &LinuxBus{
		fd:      fd,
		src:     src,
		sink:    sink,
		epfd:    epfd,
		wakefd:  wakefd,
		closeCh: make(chan struct{}),
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLOUT | unix.EPOLLIN,
		Fd:     int32(fd),
	}); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, err
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakefd),
	}); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, err
	}

	return lb, nil
}

// Kick implements txfifo.Bus: it writes to the wakeup eventfd so a blocked
// epoll_wait in Run returns immediately and drains src.
func (lb *LinuxBus) Kick() {
	var one [8]byte
	one[0] = 1
	unix.Write(lb.wakefd, one[:])
}

// Run drives the epoll loop: on every wakeup (fd writable or the eventfd
// kicked) it drains every ready message from src onto fd via non-blocking
// write, and reads any available bytes on fd to sink. It returns when ctx
// is cancelled or Close is called.
func (lb *LinuxBus) Run(ctx context.Context) error {
	events := make([]unix.EpollEvent, 8)
	readBuf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-lb.closeCh:
			return pkg.ErrClosed
		default:
		}

		n, err := unix.EpollWait(lb.epfd, events, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			switch fd {
			case lb.wakefd:
				var buf [8]byte
				unix.Read(lb.wakefd, buf[:])
				lb.drainWrites()
			case lb.fd:
				if events[i].Events&unix.EPOLLOUT != 0 {
					lb.drainWrites()
				}
				if events[i].Events&unix.EPOLLIN != 0 {
					lb.drainReads(readBuf)
				}
			}
		}
	}
}

func (lb *LinuxBus) drainWrites() {
	for {
		frame, ok := lb.src.TakeNext()
		if !ok {
			return
		}
		if err := lb.writeAll(frame); err != nil {
			pkg.LogWarn(pkg.ComponentBus, "linuxbus write failed", "err", err)
		}
		lb.src.MarkSent()
	}
}

func (lb *LinuxBus) writeAll(frame []byte) error {
	for len(frame) > 0 {
		n, err := unix.Write(lb.fd, frame)
		if err != nil {
			if err == unix.EAGAIN {
				return ErrWouldBlock
			}
			return err
		}
		frame = frame[n:]
	}
	return nil
}

func (lb *LinuxBus) drainReads(buf []byte) {
	for {
		n, err := unix.Read(lb.fd, buf)
		if n > 0 && lb.sink != nil {
			msg := make([]byte, n)
			copy(msg, buf[:n])
			lb.sink.Deliver(msg)
		}
		if err != nil || n <= 0 {
			return
		}
	}
}

// Close stops Run and releases the epoll instance and wakeup eventfd.
func (lb *LinuxBus) Close() error {
	lb.closeOnce.Do(func() {
		close(lb.closeCh)
		unix.Close(lb.wakefd)
		unix.Close(lb.epfd)
	})
	return nil
}
