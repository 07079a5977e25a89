package bus

// RxSink receives payload bytes the device delivered to the host. Batching
// and reassembly of the RX path live with the transport and the modem
// itself; RxSink exists only so a transport has somewhere to hand bytes it
// has already framed, mirroring the teacher's completion-callback shape in
// host/transfer.go.
type RxSink interface {
	Deliver(msg []byte)
}
