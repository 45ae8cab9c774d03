package mac

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mxdubois/cs325-802-11/wire"
	"go.uber.org/zap"
)

// ClockConfig parameterizes a Clock. Zero values are replaced with the
// package defaults in NewClock.
type ClockConfig struct {
	// SlotTime is the contention-window quantum.
	SlotTime time.Duration
	// SIFSTime is the short inter-frame space; PIFS and DIFS are derived
	// from it (PIFS = SIFS + slot, DIFS = SIFS + 2*slot).
	SIFSTime time.Duration
	// RTTEstimate is the configured round-trip estimate used by
	// AckWaitEstimate. The original source measured 646ms empirically.
	RTTEstimate time.Duration
	// BeaconInterval sets the starting beacon cadence; negative disables
	// beacons entirely.
	BeaconInterval time.Duration
}

func (c ClockConfig) withDefaults() ClockConfig {
	if c.SlotTime == 0 {
		c.SlotTime = DefaultSlotTime
	}
	if c.SIFSTime == 0 {
		c.SIFSTime = DefaultSIFSTime
	}
	if c.RTTEstimate == 0 {
		c.RTTEstimate = DefaultRTTEstimate
	}
	if c.BeaconInterval == 0 {
		c.BeaconInterval = -1
	}
	return c
}

const fudgeRingSize = 10

// Clock is the synchronized logical clock shared by the sender, receiver,
// and upper layer. time() is a forward-only adjustment of the local
// monotonic clock, rolled forward whenever an inbound beacon reveals the
// peer is further along; it never runs backward.
type Clock struct {
	cfg ClockConfig
	mac uint16
	log *zap.Logger

	start time.Time

	// offsetNanos is added to the local monotonic reading. Only ever
	// increases; read/written with atomic.Int64 so readers never observe a
	// torn value.
	offsetNanos atomic.Int64

	beaconIntervalNanos atomic.Int64
	lastBeaconEmitNanos atomic.Int64

	// fudge ring buffer: elapsed time between updateBeacon and
	// onBeaconTransmit for the last fudgeRingSize beacon transmissions.
	fudgeMu     sync.Mutex
	fudgeRing   [fudgeRingSize]time.Duration
	fudgeNext   int
	fudgeFilled int

	// updateMarkNanos records when updateBeacon last stamped a beacon, so
	// onBeaconTransmit can measure packaging-to-wire latency.
	updateMarkNanos atomic.Int64
}

// NewClock constructs a Clock for the host identified by mac.
func NewClock(mac uint16, cfg ClockConfig, log *zap.Logger) *Clock {
	c := &Clock{
		cfg:   cfg.withDefaults(),
		mac:   mac,
		log:   log,
		start: time.Now(),
	}
	c.beaconIntervalNanos.Store(int64(c.cfg.BeaconInterval))
	return c
}

// Time returns the current logical time: the local monotonic elapsed time
// plus the forward-only offset. Safe for concurrent use.
func (c *Clock) Time() time.Duration {
	return time.Since(c.start) + time.Duration(c.offsetNanos.Load())
}

// SetBeaconInterval sets the beacon cadence; a negative value disables
// beacon emission.
func (c *Clock) SetBeaconInterval(d time.Duration) {
	c.beaconIntervalNanos.Store(int64(d))
}

// BeaconInterval returns the current beacon cadence.
func (c *Clock) BeaconInterval() time.Duration {
	return time.Duration(c.beaconIntervalNanos.Load())
}

// LastBeaconEmit returns the logical time of the most recent beacon
// transmission.
func (c *Clock) LastBeaconEmit() time.Duration {
	return time.Duration(c.lastBeaconEmitNanos.Load())
}

// SIFS, PIFS, and DIFS return the three inter-frame spaces, derived from the
// configured slot and SIFS time.
func (c *Clock) SIFS() time.Duration { return c.cfg.SIFSTime }
func (c *Clock) PIFS() time.Duration { return pifs(c.cfg.SIFSTime, c.cfg.SlotTime) }
func (c *Clock) DIFS() time.Duration { return difs(c.cfg.SIFSTime, c.cfg.SlotTime) }
func (c *Clock) SlotTime() time.Duration { return c.cfg.SlotTime }

// IFSFor returns the inter-frame space required before contending for the
// medium with a frame of the given type.
func (c *Clock) IFSFor(frameType byte) time.Duration {
	switch frameType {
	case wire.TypeBeacon:
		return c.PIFS()
	case wire.TypeData:
		return c.DIFS()
	default: // ACK and anything else default to SIFS
		return c.SIFS()
	}
}

// AckWaitEstimate returns how long the sender should wait for an ACK:
// the configured RTT estimate plus one slot time.
func (c *Clock) AckWaitEstimate() time.Duration {
	return c.cfg.RTTEstimate + c.cfg.SlotTime
}

// TransmitFudge returns the moving average of packaging-to-wire latency
// measured over the last fudgeRingSize beacon transmissions, zero if none
// have been recorded yet.
func (c *Clock) TransmitFudge() time.Duration {
	c.fudgeMu.Lock()
	defer c.fudgeMu.Unlock()
	if c.fudgeFilled == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < c.fudgeFilled; i++ {
		total += c.fudgeRing[i]
	}
	return total / time.Duration(c.fudgeFilled)
}

// GenerateBeacon builds a fresh beacon Frame carrying the current logical
// time, big-endian, in an 8-byte payload.
func (c *Clock) GenerateBeacon() (wire.Frame, error) {
	now := c.Time()
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, uint64(now))
	return wire.Build(wire.TypeBeacon, wire.BroadcastAddr, c.mac, payload, 0, now)
}

// UpdateBeacon rewrites f's payload with time()+transmit_fudge_ms just
// before transmission, and stamps last_beacon_emit_ms. It must be called
// immediately before the beacon is hitting the wire so OnBeaconTransmit can
// later measure the packaging-to-wire latency.
func (c *Clock) UpdateBeacon(f wire.Frame) (wire.Frame, error) {
	now := c.Time()
	fudged := now + c.TransmitFudge()
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, uint64(fudged))

	updated, err := f.SetPayload(payload)
	if err != nil {
		return wire.Frame{}, err
	}
	c.lastBeaconEmitNanos.Store(int64(now))
	c.updateMarkNanos.Store(int64(now))
	return updated, nil
}

// OnBeaconTransmit records the elapsed time since the last UpdateBeacon call
// into the fudge ring buffer.
func (c *Clock) OnBeaconTransmit() {
	mark := time.Duration(c.updateMarkNanos.Load())
	elapsed := c.Time() - mark

	c.fudgeMu.Lock()
	defer c.fudgeMu.Unlock()
	c.fudgeRing[c.fudgeNext] = elapsed
	c.fudgeNext = (c.fudgeNext + 1) % fudgeRingSize
	if c.fudgeFilled < fudgeRingSize {
		c.fudgeFilled++
	}
}

// ConsumeBeacon extracts the peer's encoded time from f and, if it is ahead
// of timeReceived, rolls the local offset forward to match. timeReceived
// must be captured before any decoding so consumption latency doesn't
// falsely inflate the observed skew. The offset never decreases.
func (c *Clock) ConsumeBeacon(f wire.Frame, timeReceived time.Duration) {
	if !f.IsBeacon() || len(f.Payload) < 8 {
		return
	}
	peerTime := time.Duration(binary.BigEndian.Uint64(f.Payload[:8]))
	diff := peerTime - timeReceived
	if diff <= 0 {
		return
	}
	for {
		cur := c.offsetNanos.Load()
		next := cur + int64(diff)
		if c.offsetNanos.CompareAndSwap(cur, next) {
			break
		}
	}
	if c.log != nil {
		c.log.Debug("rolled clock offset forward", zap.Duration("diff", diff))
	}
}
