package mac

import (
	"context"

	"github.com/mxdubois/cs325-802-11/internal/queue"
	"github.com/mxdubois/cs325-802-11/wire"
	"go.uber.org/zap"
)

// Receiver is the frame-intake pipeline: blocking receive, cheap address
// filtering, full decode + CRC check, dispatch by type, duplicate
// suppression, and ACK manufacture. It runs as a single loop on its own
// goroutine, started by Run.
type Receiver struct {
	mac   uint16
	radio Radio
	clock *Clock
	log   *zap.Logger

	recvData *queue.Queue[wire.Frame]
	recvAck  *queue.Queue[wire.Frame]
	sendAck  *queue.Queue[wire.Frame]

	// lastSeq is the per-peer duplicate table: source address -> last
	// in-sequence number delivered. Touched only by this goroutine, so it
	// needs no synchronization. Absent entries behave as -1.
	lastSeq map[uint16]int32
}

// NewReceiver constructs a Receiver for host mac.
func NewReceiver(
	mac uint16,
	radio Radio,
	clock *Clock,
	recvData, recvAck, sendAck *queue.Queue[wire.Frame],
	log *zap.Logger,
) *Receiver {
	return &Receiver{
		mac:      mac,
		radio:    radio,
		clock:    clock,
		log:      log,
		recvData: recvData,
		recvAck:  recvAck,
		sendAck:  sendAck,
		lastSeq:  make(map[uint16]int32),
	}
}

// Run drives the receive loop until ctx is done or the radio reports an
// error (which, for Radio.Receive, only ever happens on cancellation).
func (r *Receiver) Run(ctx context.Context) {
	for {
		data, err := r.radio.Receive(ctx)
		if err != nil {
			return
		}
		// Capture recv_time immediately so later processing latency can't
		// be mistaken for clock skew.
		recvTime := r.clock.Time()

		dest, err := wire.ParseDest(data)
		if err != nil {
			continue
		}
		if dest != r.mac && dest != wire.BroadcastAddr {
			continue
		}

		frame, err := wire.Decode(data, recvTime)
		if err != nil {
			if r.log != nil {
				r.log.Debug("dropping malformed frame", zap.Error(err))
			}
			continue
		}

		switch frame.Type {
		case wire.TypeAck:
			r.recvAck.Put(frame)
		case wire.TypeBeacon:
			r.clock.ConsumeBeacon(frame, recvTime)
		case wire.TypeData:
			r.handleData(frame)
		default:
			if r.log != nil {
				r.log.Debug("dropping frame of unknown type", zap.Uint8("type", frame.Type))
			}
		}
	}
}

// handleData applies the duplicate filter, delivers the frame to the upper
// layer when it isn't a repeat, and always manufactures an ACK — even for a
// duplicate, since the peer's own ACK may have been lost.
func (r *Receiver) handleData(frame wire.Frame) {
	lastSeq, ok := r.lastSeq[frame.Src]
	if !ok {
		lastSeq = -1
	}

	if int32(frame.Seq) > lastSeq {
		nextExpected := wrapSeq(lastSeq + 1)
		if int32(frame.Seq) > nextExpected && r.log != nil {
			r.log.Debug("sequence gap detected",
				zap.Uint16("src", frame.Src),
				zap.Uint16("seq", frame.Seq),
				zap.Int32("expected", nextExpected),
			)
		}
		if !r.recvData.Offer(frame) && r.log != nil {
			r.log.Debug("recv_data full, dropping frame",
				zap.Uint16("src", frame.Src),
				zap.Uint16("seq", frame.Seq),
			)
		}
		r.lastSeq[frame.Src] = nextExpected
	} else if r.log != nil {
		r.log.Debug("discarding duplicate data frame",
			zap.Uint16("src", frame.Src),
			zap.Uint16("seq", frame.Seq),
		)
	}

	ack, err := wire.Build(wire.TypeAck, frame.Src, r.mac, nil, frame.Seq, r.clock.Time())
	if err != nil {
		if r.log != nil {
			r.log.Warn("failed to build ack", zap.Error(err))
		}
		return
	}
	r.sendAck.Put(ack)
}

func wrapSeq(v int32) int32 {
	if v > wire.MaxSeqNum {
		return 0
	}
	return v
}
