package mac

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Radio is the opaque physical-layer port the MAC assumes is already
// available: a byte-oriented half-duplex link that reports whether it is
// currently transmitting/receiving and how long it has sat idle. transmit is
// synchronous and reports the number of bytes actually accepted, the same
// contract as the reference RF layer's transmit/receive/inUse/idleTime.
type Radio interface {
	// Transmit writes data onto the medium and returns the number of bytes
	// actually accepted. Fewer bytes than len(data) signals a collision.
	Transmit(data []byte) (int, error)
	// Receive blocks until a frame arrives or ctx is done.
	Receive(ctx context.Context) ([]byte, error)
	// InUse reports whether the medium is currently busy.
	InUse() bool
	// IdleTime reports how long the medium has been idle.
	IdleTime() time.Duration
	// Clock returns the radio's own monotonic clock reading.
	Clock() time.Duration
}

// TxFault lets a test induce a partial transmit (simulating a collision) on
// a single call; it returns the number of bytes the medium actually
// accepted.
type TxFault func(data []byte) (accepted int)

// Medium is the shared broadcast bus joining a set of SimRadios. It models a
// half-duplex wireless link: every Transmit marks the medium busy for the
// frame's simulated airtime and fans the bytes out to every other
// subscriber, grounded in the teacher's driver/stub host-side double.
type Medium struct {
	mu          sync.Mutex
	bytesPerSec int
	busyUntil   time.Time
	start       time.Time
	subscribers []*SimRadio
}

// NewMedium constructs a Medium with the given simulated bitrate in
// bytes/sec (determines how long a Transmit call marks the medium busy).
func NewMedium(bytesPerSec int) *Medium {
	if bytesPerSec <= 0 {
		bytesPerSec = 2_000_000
	}
	return &Medium{bytesPerSec: bytesPerSec, start: time.Now()}
}

func (m *Medium) join(r *SimRadio) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, r)
}

func (m *Medium) airtime(n int) time.Duration {
	return time.Duration(n) * time.Second / time.Duration(m.bytesPerSec)
}

// SimRadio is a host-side Radio double for tests and the demo CLI: no
// TinyGo/baremetal split, since the physical radio's own hardware registers
// are out of scope.
type SimRadio struct {
	medium *Medium
	inbox  chan []byte

	mu       sync.Mutex
	lossRate float64
	rng      *rand.Rand
	txFault  TxFault
}

// NewSimRadio joins a new SimRadio to medium. seed controls the link-loss
// RNG so tests are reproducible.
func NewSimRadio(medium *Medium, seed int64) *SimRadio {
	r := &SimRadio{
		medium: medium,
		inbox:  make(chan []byte, 16),
		rng:    rand.New(rand.NewSource(seed)),
	}
	medium.join(r)
	return r
}

// SetLossRate sets the probability, in [0,1], that an inbound frame is
// silently dropped before reaching this radio's Receive loop. Used to
// simulate the "lost ACK" scenario.
func (r *SimRadio) SetLossRate(rate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lossRate = rate
}

// SetTxFault arms a one-shot fault: the next Transmit call reports whatever
// accepted count f returns instead of the full frame length, then the fault
// clears itself. Used to simulate a partial-write collision.
func (r *SimRadio) SetTxFault(f TxFault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txFault = f
}

// Transmit implements Radio.
func (r *SimRadio) Transmit(data []byte) (int, error) {
	r.mu.Lock()
	fault := r.txFault
	r.txFault = nil
	r.mu.Unlock()

	accepted := len(data)
	if fault != nil {
		accepted = fault(data)
	}

	r.medium.mu.Lock()
	r.medium.busyUntil = time.Now().Add(r.medium.airtime(accepted))
	subs := make([]*SimRadio, len(r.medium.subscribers))
	copy(subs, r.medium.subscribers)
	r.medium.mu.Unlock()

	if accepted == len(data) {
		for _, sub := range subs {
			if sub == r {
				continue
			}
			sub.deliver(data)
		}
	}
	return accepted, nil
}

func (r *SimRadio) deliver(data []byte) {
	r.mu.Lock()
	drop := r.lossRate > 0 && r.rng.Float64() < r.lossRate
	r.mu.Unlock()
	if drop {
		return
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	select {
	case r.inbox <- cp:
	default:
		// Inbox full: drop the oldest queued frame to keep the sending
		// goroutine from blocking on a slow receiver.
		select {
		case <-r.inbox:
		default:
		}
		select {
		case r.inbox <- cp:
		default:
		}
	}
}

// Receive implements Radio.
func (r *SimRadio) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-r.inbox:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InUse implements Radio.
func (r *SimRadio) InUse() bool {
	r.medium.mu.Lock()
	defer r.medium.mu.Unlock()
	return time.Now().Before(r.medium.busyUntil)
}

// IdleTime implements Radio.
func (r *SimRadio) IdleTime() time.Duration {
	r.medium.mu.Lock()
	defer r.medium.mu.Unlock()
	if time.Now().Before(r.medium.busyUntil) {
		return 0
	}
	return time.Since(r.medium.busyUntil)
}

// Clock implements Radio.
func (r *SimRadio) Clock() time.Duration {
	return time.Since(r.medium.start)
}
