// Package bus defines the collaborator boundary between a txfifo.Engine and
// whatever physical transport carries its batched messages to the modem,
// plus two concrete transports: simbus, a length-framed transport over an
// io.ReadWriter suitable for tests and loopback examples, and linuxbus, an
// epoll-driven transport over a raw file descriptor.
package bus
