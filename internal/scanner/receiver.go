package scanner

import (
	"time"

	"github.com/golang/glog"

	"github.com/terrafind/sporefinder/internal/addr"
	"github.com/terrafind/sporefinder/internal/driver"
	"github.com/terrafind/sporefinder/internal/flow"
	"github.com/terrafind/sporefinder/internal/logctl"
	"github.com/terrafind/sporefinder/internal/result"
	"github.com/terrafind/sporefinder/internal/terraria"
)

// RecvBackoff is how long the receiver sleeps after an empty Recv (spec §5).
const RecvBackoff = 2 * time.Millisecond

var connectBytes = terraria.BuildConnect()

// Receiver drives the handshake, injects the Connect payload, classifies
// replies, and tears down flows. It is the single consumer of driver.Recv.
type Receiver struct {
	drv   driver.Driver
	table *flow.Table
	sink  *result.Sink
}

// NewReceiver builds a Receiver over the given driver, flow table and
// result sink.
func NewReceiver(drv driver.Driver, table *flow.Table, sink *result.Sink) *Receiver {
	return &Receiver{drv: drv, table: table, sink: sink}
}

// Run loops recv/dispatch until stop is closed.
func (r *Receiver) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		seg, ok := r.drv.Recv()
		if !ok {
			time.Sleep(RecvBackoff)
			continue
		}
		r.handle(seg)
	}
}

func (r *Receiver) handle(seg driver.Segment) {
	key := seg.Source

	found := r.table.WithLock(key, func(fl *flow.Flow) {
		if fl.Closed {
			return
		}

		if seg.Flags.SYN && seg.Flags.ACK {
			r.drv.SendACK(key, seg.DestPort, seg.Acknowledgment, seg.Sequence+1)
			r.drv.SendData(key, seg.DestPort, seg.Acknowledgment, seg.Sequence+1, connectBytes)
			fl.HandshakeDone = true
		}

		if seg.Flags.PSH {
			r.handlePSH(key, seg, fl)
		}

		if seg.Flags.RST {
			fl.Closed = true
		}

		if seg.Flags.FIN {
			r.drv.SendFIN(key, seg.DestPort, seg.Acknowledgment, seg.Sequence)
			fl.Closed = true
		}
	})

	if !found {
		r.drv.SendRST(key, seg.DestPort, seg.Acknowledgment, seg.Sequence)
	}
}

// handlePSH implements spec §4.6 step 2. ACK always goes out first; a
// truncated frame gets an immediate RST; a destination already published is
// skipped entirely (no RST, no further action); otherwise the payload is
// classified by packet id, and — unless the id is NetModule (82) — a RST
// tears the flow down regardless of whether classification succeeded.
func (r *Receiver) handlePSH(key addr.SocketV4, seg driver.Segment, fl *flow.Flow) {
	r.drv.SendACK(key, seg.DestPort, seg.Acknowledgment, seg.Sequence+uint32(len(seg.Payload)))

	if len(seg.Payload) < 3 {
		r.drv.SendRST(key, seg.DestPort, seg.Sequence, seg.Acknowledgment)
		return
	}

	if r.sink.Contains(key) {
		return
	}

	packetID, framePayload, err := terraria.DecodeFrame(seg.Payload)
	if err != nil {
		r.drv.SendRST(key, seg.DestPort, seg.Sequence, seg.Acknowledgment)
		return
	}

	switch packetID {
	case terraria.IDFatalError:
		if reason, err := terraria.ParseFatalError(framePayload); err == nil {
			r.sink.Publish(key, result.NewBooted(reason))
		}
	case terraria.IDConnectionApproved:
		if _, err := terraria.ParseConnectionApproved(framePayload); err == nil {
			r.sink.Publish(key, result.NewApproved())
		}
	case 9:
		r.sink.Publish(key, result.NewApproved())
	case terraria.IDPasswordRequired:
		r.sink.Publish(key, result.NewPasswordRequired())
	case terraria.IDNetModule:
		return
	default:
		if logctl.Enabled(pkgName, logctl.LevelTrace) {
			glog.Infof("scanner: unrecognized packet id %d from %s", packetID, key)
		}
	}

	r.drv.SendRST(key, seg.DestPort, seg.Sequence, seg.Acknowledgment)
}
