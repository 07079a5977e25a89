// Package txfifo implements the transmit batching engine of a wireless
// modem host driver: a single contiguous ring buffer that coalesces one or
// more producer payloads beneath a shared message header, padded and
// aligned for linear delivery to a bus driver.
//
// # Wire format
//
// Each TX message is a 16-byte header followed by up to [PldMax] 4-byte
// payload descriptors, the payloads themselves (each padded to a multiple
// of 16 bytes), and trailing padding to a multiple of the configured bus
// block size. All multi-byte fields are little-endian.
//
// The engine always reserves a full [HdrBlock] (64-byte) header region when
// opening a message, even for a single payload, so descriptor appends never
// need to shift payload bytes. At close time the populated prefix is
// relocated forward to sit flush against the first payload; see
// [Engine.closeOpenMessage] for the exact relocation arithmetic.
//
// # Concurrency
//
// [Engine] is safe for concurrent [Engine.Submit] calls from multiple
// producer goroutines, concurrently with a single consumer driving
// [Engine.TakeNext] and [Engine.MarkSent]. A single mutex guards all
// engine state; bus notifications are issued after the lock is released.
package txfifo
