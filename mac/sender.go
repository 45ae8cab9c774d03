package mac

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/mxdubois/cs325-802-11/internal/queue"
	"github.com/mxdubois/cs325-802-11/wire"
	"go.uber.org/zap"
)

type senderState int

const (
	stateWaitData senderState = iota
	stateWaitOpenChannel
	stateWaitIFS
	stateWaitBackoff
	stateWaitAck
)

func (s senderState) String() string {
	switch s {
	case stateWaitData:
		return "WAIT_DATA"
	case stateWaitOpenChannel:
		return "WAIT_OPEN_CHANNEL"
	case stateWaitIFS:
		return "WAIT_IFS"
	case stateWaitBackoff:
		return "WAIT_BACKOFF"
	case stateWaitAck:
		return "WAIT_ACK"
	default:
		return "UNKNOWN"
	}
}

// SenderConfig parameterizes a Sender. Zero values fall back to package
// defaults in NewSender.
type SenderConfig struct {
	CWMin      int
	CWMax      int
	RetryLimit int
	RandomSeed int64
}

func (c SenderConfig) withDefaults() SenderConfig {
	if c.CWMin == 0 {
		c.CWMin = DefaultCWMin
	}
	if c.CWMax == 0 {
		c.CWMax = DefaultCWMax
	}
	if c.RetryLimit == 0 {
		c.RetryLimit = DefaultRetryLimit
	}
	return c
}

// Sender is the CSMA/CA state machine: carrier sense, inter-frame spacing,
// binary exponential backoff, transmission, retry, and ACK wait. It runs as
// a single cooperative loop on its own goroutine, started by Run.
type Sender struct {
	radio Radio
	clock *Clock
	log   *zap.Logger
	mac   uint16

	sendData *queue.Queue[wire.Frame]
	sendAck  *queue.Queue[wire.Frame]
	recvAck  *queue.Queue[wire.Frame]

	hostStatus *atomic.Int32

	cfg SenderConfig
	rng *rand.Rand

	slotSelectionPolicy atomic.Int32

	lastSeq map[uint16]uint16

	state     senderState
	packet    *wire.Frame
	tryCount  int
	cw        int
	backoff   time.Duration
	lastEvent time.Duration
}

// NewSender constructs a Sender. hostStatus is shared with the owning Link
// so the upper layer's Status() call observes TX_DELIVERED/TX_FAILED
// transitions.
func NewSender(
	mac uint16,
	radio Radio,
	clock *Clock,
	sendData, sendAck, recvAck *queue.Queue[wire.Frame],
	hostStatus *atomic.Int32,
	cfg SenderConfig,
	log *zap.Logger,
) *Sender {
	cfg = cfg.withDefaults()
	seed := cfg.RandomSeed
	if seed == 0 {
		seed = int64(mac)
	}
	return &Sender{
		radio:      radio,
		clock:      clock,
		log:        log,
		mac:        mac,
		sendData:   sendData,
		sendAck:    sendAck,
		recvAck:    recvAck,
		hostStatus: hostStatus,
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(seed)),
		lastSeq:    make(map[uint16]uint16),
		state:      stateWaitData,
		cw:         cfg.CWMin,
	}
}

// SetSlotSelectionPolicy sets the debug slot-selection override: 0 chooses a
// random slot per the CW, nonzero forces the deterministic worst case
// (backoff = CW*slot).
func (s *Sender) SetSlotSelectionPolicy(policy int32) {
	s.slotSelectionPolicy.Store(policy)
}

// SlotSelectionPolicy returns the current slot-selection policy.
func (s *Sender) SlotSelectionPolicy() int32 {
	return s.slotSelectionPolicy.Load()
}

// Run drives the state machine until ctx is done. It never returns an error;
// cancellation is the only exit path, matching the original's
// Thread.interrupted() loop condition.
func (s *Sender) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// 802.11 DCF 9.3.2.8: ACKs go out SIFS after arrival regardless of
		// the current state or medium busy/idle state.
		s.expediteAckQueue()

		elapsed := s.clock.Time() - s.lastEvent

		switch s.state {
		case stateWaitData:
			frame, ok, cancelled := s.waitForData(ctx)
			if cancelled {
				return
			}
			if !ok {
				continue
			}
			if frame.Type == wire.TypeData {
				seq := s.nextSeqNum(frame.Dest)
				if withSeq, err := frame.SetSequenceNumber(seq); err == nil {
					frame = withSeq
				}
			}
			s.packet = &frame
			s.tryCount = 0
			s.setBackoff(0, frame.Type)
			s.setState(stateWaitOpenChannel)

		case stateWaitOpenChannel:
			if !s.radio.InUse() {
				s.setState(stateWaitIFS)
			} else {
				s.sleepyTime(ctx)
			}

		case stateWaitIFS:
			ifs := s.clock.IFSFor(s.packet.Type)
			timeLeft := ifs - elapsed
			if s.radio.InUse() || s.radio.IdleTime() < elapsed {
				s.setState(stateWaitOpenChannel)
			} else if timeLeft <= 0 {
				if !s.aligned() {
					continue
				}
				s.setState(stateWaitBackoff)
			} else {
				s.sleepyTime(ctx)
			}

		case stateWaitBackoff:
			s.runWaitBackoff(elapsed, ctx)

		case stateWaitAck:
			s.runWaitAck(elapsed, ctx)
		}
	}
}

func (s *Sender) runWaitBackoff(elapsed time.Duration, ctx context.Context) {
	timeLeft := s.backoff - elapsed
	if idle := s.radio.IdleTime(); s.radio.InUse() || idle < elapsed {
		// Freeze the remaining backoff rather than redrawing it: only the
		// portion of elapsed during which the medium was actually busy
		// fails to count toward the countdown.
		s.backoff -= elapsed - idle
		if s.backoff < 0 {
			s.backoff = 0
		}
		s.setState(stateWaitOpenChannel)
		return
	}
	if timeLeft > 0 {
		s.sleepyTime(ctx)
		return
	}
	if !s.aligned() {
		return
	}

	if s.packet.IsBeacon() {
		if updated, err := s.clock.UpdateBeacon(*s.packet); err == nil {
			s.packet = &updated
		}
		if s.radio.InUse() {
			s.backoff = s.clock.Time() - s.lastEvent
			s.setState(stateWaitOpenChannel)
			return
		}
	}

	bytesSent := s.transmit(*s.packet)
	if s.packet.IsBeacon() {
		s.clock.OnBeaconTransmit()
	}
	s.tryCount++

	switch {
	case bytesSent < s.packet.Size():
		// The medium accepted fewer bytes than the frame's size: treat it as
		// a collision. We know the frame never fully hit the wire, so there
		// is no point waiting for an ACK.
		s.prepareForRetry()
		s.setState(stateWaitOpenChannel)
	case s.packet.Type == wire.TypeData:
		s.setState(stateWaitAck)
	default:
		// ACKs and beacons are never retried.
		s.retirePacket()
		s.setState(stateWaitData)
	}
}

func (s *Sender) runWaitAck(elapsed time.Duration, ctx context.Context) {
	if s.tryCount >= s.maxTryCount() || s.receivedAckFor(*s.packet) {
		if s.tryCount >= s.maxTryCount() {
			s.hostStatus.Store(int32(StatusTXFailed))
			if s.log != nil {
				s.log.Debug("giving up on packet", zap.Uint16("seq", s.packet.Seq))
			}
		} else {
			s.hostStatus.Store(int32(StatusTXDelivered))
			if s.log != nil {
				s.log.Debug("packet delivered", zap.Uint16("seq", s.packet.Seq))
			}
		}
		s.retirePacket()
		s.setState(stateWaitData)
	} else if elapsed >= s.clock.AckWaitEstimate() {
		if s.log != nil {
			s.log.Debug("no ack received, collision assumed")
		}
		s.prepareForRetry()
		s.setState(stateWaitOpenChannel)
	} else {
		s.sleepyTime(ctx)
	}
}

// waitForData blocks for a DATA frame to arrive, or synthesizes a beacon if
// one is due. ok is false either because ctx is done (cancelled=true) or
// because the short poll timed out (cancelled=false, caller should loop and
// recheck).
func (s *Sender) waitForData(ctx context.Context) (frame wire.Frame, ok bool, cancelled bool) {
	interval := s.clock.BeaconInterval()
	beaconElapsed := s.clock.Time() - s.clock.LastBeaconEmit()

	if interval > 0 && beaconElapsed >= interval {
		beacon, err := s.clock.GenerateBeacon()
		if err != nil {
			return wire.Frame{}, false, false
		}
		return beacon, true, false
	}

	// Poll in short slices so the main loop keeps revisiting the outbound
	// ACK expedite path even while no data is queued.
	timeout := s.clock.SlotTime() / 10
	if interval > 0 && interval < timeout {
		timeout = interval
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	f, polled := s.sendData.Take(pollCtx)
	if polled {
		return f, true, false
	}
	select {
	case <-ctx.Done():
		return wire.Frame{}, false, true
	default:
		return wire.Frame{}, false, false
	}
}

// setState transitions to newState and snaps last_event forward to the next
// 50-unit boundary, per the alignment contract every wait state observes.
func (s *Sender) setState(newState senderState) {
	now := s.clock.Time()
	s.lastEvent = snapForward(now)
	s.state = newState
	if s.log != nil {
		s.log.Debug("sender state transition", zap.Stringer("state", newState))
	}
}

func (s *Sender) retirePacket() {
	s.packet = nil
}

func (s *Sender) prepareForRetry() {
	retried := s.packet.SetRetry(true)
	s.packet = &retried
	s.setBackoff(s.tryCount, s.packet.Type)
}

// receivedAckFor reports whether recv_ack currently holds an ACK matching
// p's (seq, dest), removing it if found.
func (s *Sender) receivedAckFor(p wire.Frame) bool {
	_, ok := s.recvAck.DrainMatch(func(ack wire.Frame) bool {
		return ack.Seq == p.Seq && ack.Src == p.Dest
	})
	return ok
}

// setBackoff implements the binary exponential backoff of 802.11 DCF
// 9.3.3: CW resets to CW_MIN on a fresh attempt and doubles-plus-one
// (clamped to CW_MAX) on every retry. Beacons bypass backoff entirely.
func (s *Sender) setBackoff(tryCount int, frameType byte) {
	if frameType == wire.TypeBeacon {
		s.backoff = 0
		return
	}

	newCW := s.cfg.CWMin
	if tryCount > 0 {
		newCW = s.cw*2 + 1
	}
	s.cw = clampInt(newCW, s.cfg.CWMin, s.cfg.CWMax)

	k := s.rng.Intn(s.cw + 1)
	s.backoff = time.Duration(k) * s.clock.SlotTime()

	if s.SlotSelectionPolicy() != SlotSelectionRandom {
		s.backoff = time.Duration(s.cw) * s.clock.SlotTime()
	}
}

func (s *Sender) maxTryCount() int {
	return s.cfg.RetryLimit + 1
}

func (s *Sender) transmit(f wire.Frame) int {
	if s.log != nil {
		s.log.Info("transmitting frame",
			zap.Uint8("type", f.Type),
			zap.Uint16("seq", f.Seq),
			zap.Uint16("dest", f.Dest),
			zap.Int("try", s.tryCount),
		)
	}
	n, err := s.radio.Transmit(wire.Encode(f))
	if err != nil && s.log != nil {
		s.log.Warn("transmit error", zap.Error(err))
	}
	return n
}

func (s *Sender) aligned() bool {
	return s.clock.Time()%AlignmentUnit <= AlignmentEpsilon
}

func (s *Sender) sleepyTime(ctx context.Context) {
	select {
	case <-time.After(s.clock.SlotTime() / 10):
	case <-ctx.Done():
	}
}

// expediteAckQueue sends the oldest queued outbound ACK directly, bypassing
// the state machine entirely, once it has aged at least SIFS and the medium
// is on a 50-unit boundary.
func (s *Sender) expediteAckQueue() {
	ack, ok := s.sendAck.Peek()
	if !ok {
		return
	}
	ackElapsed := s.clock.Time() - ack.InstantiatedAt
	if ackElapsed >= s.clock.SIFS() && s.aligned() {
		s.sendAck.PopFront()
		if s.log != nil {
			s.log.Debug("sending expedited ack", zap.Uint16("seq", ack.Seq))
		}
		if _, err := s.radio.Transmit(wire.Encode(ack)); err != nil && s.log != nil {
			s.log.Warn("failed to transmit expedited ack", zap.Error(err))
		}
	}
}

// nextSeqNum issues the next per-destination sequence number, wrapping to 0
// after MaxSeqNum. Only ever touched by the sender goroutine.
func (s *Sender) nextSeqNum(dest uint16) uint16 {
	cur, ok := s.lastSeq[dest]
	if !ok || cur+1 > wire.MaxSeqNum {
		s.lastSeq[dest] = 0
		return 0
	}
	cur++
	s.lastSeq[dest] = cur
	return cur
}

// snapForward rounds t up to the next AlignmentUnit boundary (or returns t
// unchanged if it already sits on one).
func snapForward(t time.Duration) time.Duration {
	rem := t % AlignmentUnit
	if rem == 0 {
		return t
	}
	return t + (AlignmentUnit - rem)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
