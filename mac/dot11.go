package mac

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mxdubois/cs325-802-11/internal/queue"
	"github.com/mxdubois/cs325-802-11/wire"
	"go.uber.org/zap"
)

const (
	sendDataCapacity = 4
	sendAckCapacity  = 5
	recvDataCapacity = 4
	recvAckCapacity  = 5
)

// Transmission carries a received frame's payload and addressing back to
// the upper layer, mirroring the original Dot11Interface.recv() out
// parameter.
type Transmission struct {
	Dest uint16
	Src  uint16
	Buf  []byte
}

// LinkConfig parameterizes a Link's clock and sender.
type LinkConfig struct {
	Clock  ClockConfig
	Sender SenderConfig
}

// Link is the Dot11Interface shim: it owns the four queues, the
// synchronized clock, and an atomic host status, and runs the sender and
// receiver each on their own goroutine.
type Link struct {
	mac   uint16
	log   *zap.Logger
	radio Radio
	clock *Clock

	sendData *queue.Queue[wire.Frame]
	sendAck  *queue.Queue[wire.Frame]
	recvData *queue.Queue[wire.Frame]
	recvAck  *queue.Queue[wire.Frame]

	hostStatus atomic.Int32

	sender   *Sender
	receiver *Receiver

	recvMu        sync.Mutex
	pendingFrame  *wire.Frame
	pendingOffset int
}

// NewLink constructs a Link for host mac, communicating over radio. Call
// Start to launch the sender/receiver goroutines.
func NewLink(mac uint16, radio Radio, cfg LinkConfig, log *zap.Logger) *Link {
	l := &Link{
		mac:      mac,
		log:      log,
		radio:    radio,
		clock:    NewClock(mac, cfg.Clock, log),
		sendData: queue.New[wire.Frame](sendDataCapacity),
		sendAck:  queue.New[wire.Frame](sendAckCapacity),
		recvData: queue.New[wire.Frame](recvDataCapacity),
		recvAck:  queue.New[wire.Frame](recvAckCapacity),
	}
	l.hostStatus.Store(int32(StatusSuccess))

	l.sender = NewSender(mac, radio, l.clock, l.sendData, l.sendAck, l.recvAck, &l.hostStatus, cfg.Sender, log)
	l.receiver = NewReceiver(mac, radio, l.clock, l.recvData, l.recvAck, l.sendAck, log)
	return l
}

// Start launches the sender and receiver goroutines. It returns
// immediately; both goroutines run until ctx is done.
func (l *Link) Start(ctx context.Context) {
	go l.sender.Run(ctx)
	go l.receiver.Run(ctx)
}

// Clock exposes the link's synchronized clock, mainly for tests and the CLI
// self-test harness.
func (l *Link) Clock() *Clock { return l.clock }

// Send splits data into ≤2038-byte payloads, wraps each in a DATA frame (or
// a BEACON if dest is the broadcast address), and enqueues them onto
// send_data. It returns the number of bytes actually queued.
func (l *Link) Send(dest uint16, data []byte, length int) int {
	if length < 0 {
		l.hostStatus.Store(int32(StatusBadBufSize))
		return -1
	}
	if len(data) < length {
		l.hostStatus.Store(int32(StatusIllegalArgument))
		return -1
	}
	if l.sendData.Len() >= l.sendData.Cap() {
		l.hostStatus.Store(int32(StatusInsufficientBufferSpace))
		return -1
	}

	frameType := byte(wire.TypeData)
	if dest == wire.BroadcastAddr {
		frameType = wire.TypeBeacon
	}

	queued := 0
	for queued < length {
		toQueue := length - queued
		if toQueue > wire.MaxPayloadSize {
			toQueue = wire.MaxPayloadSize
		}
		chunk := make([]byte, toQueue)
		copy(chunk, data[queued:queued+toQueue])

		// Sequence number is assigned by the sender just before
		// transmission; queue with a placeholder of 0.
		frame, err := wire.Build(frameType, dest, l.mac, chunk, 0, l.clock.Time())
		if err != nil {
			l.hostStatus.Store(int32(StatusUnspecifiedError))
			return queued
		}
		if !l.sendData.Offer(frame) {
			break
		}
		queued += toQueue
	}
	return queued
}

// Recv blocks until a data frame is available, then copies its payload into
// t.Buf (up to cap(t.Buf) bytes), retaining any unconsumed remainder for the
// next call. It returns the number of bytes copied, or 0 if ctx is done
// before a frame arrives.
func (l *Link) Recv(ctx context.Context, t *Transmission) int {
	l.recvMu.Lock()
	defer l.recvMu.Unlock()

	if l.pendingFrame == nil {
		f, ok := l.recvData.Take(ctx)
		if !ok {
			return 0
		}
		l.pendingFrame = &f
		l.pendingOffset = 0
	}

	t.Dest = l.pendingFrame.Dest
	t.Src = l.pendingFrame.Src

	data := l.pendingFrame.Payload
	bufCap := cap(t.Buf)
	remaining := len(data) - l.pendingOffset

	var n int
	if remaining <= bufCap {
		t.Buf = t.Buf[:remaining]
		copy(t.Buf, data[l.pendingOffset:])
		n = remaining
		l.pendingFrame = nil
		l.pendingOffset = 0
	} else {
		t.Buf = t.Buf[:bufCap]
		copy(t.Buf, data[l.pendingOffset:l.pendingOffset+bufCap])
		n = bufCap
		l.pendingOffset += bufCap
	}
	return n
}

// Status returns the current atomic status code.
func (l *Link) Status() Status {
	return Status(l.hostStatus.Load())
}

// Command implements the option-setting command channel: cmd 0 dumps
// settings, 2 sets slot-selection policy, 3 sets beacon interval. cmd 1
// (debug level) is accepted but changes nothing; the logger's level is
// fixed when the logger is built.
func (l *Link) Command(cmd, val int) int {
	switch cmd {
	case CmdDumpSettings:
		if l.log != nil {
			l.log.Info("link settings",
				zap.Int32("slotSelectionPolicy", l.sender.SlotSelectionPolicy()),
				zap.Duration("beaconInterval", l.clock.BeaconInterval()),
			)
		}
	case CmdSetDebugLevel:
		// The debug level itself lives in the telemetry logger's configured
		// level, not in link state; this command exists for interface
		// parity with the original command channel.
	case CmdSetSlotSelection:
		l.sender.SetSlotSelectionPolicy(int32(val))
	case CmdSetBeaconInterval:
		l.clock.SetBeaconInterval(time.Duration(val))
	}
	return 0
}
