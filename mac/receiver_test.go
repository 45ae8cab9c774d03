package mac

import (
	"context"
	"testing"
	"time"

	"github.com/mxdubois/cs325-802-11/internal/queue"
	"github.com/mxdubois/cs325-802-11/wire"
	"github.com/stretchr/testify/require"
)

func newTestReceiver(t *testing.T) (*Receiver, *fakeRadio, *Clock) {
	t.Helper()
	radio := newFakeRadio()
	clock := NewClock(1, ClockConfig{}, nil)
	recv := NewReceiver(1, radio, clock,
		queue.New[wire.Frame](4), queue.New[wire.Frame](5), queue.New[wire.Frame](5), nil)
	return recv, radio, clock
}

// TestReceiverDuplicateSuppression matches spec.md §8's "duplicate
// suppression" property: a repeated sequence number is ACKed but never
// delivered a second time.
func TestReceiverDuplicateSuppression(t *testing.T) {
	recv, radio, clock := newTestReceiver(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recv.Run(ctx)

	// A realistic peer stream starts at seq=0 and increments by 1 per frame;
	// the repeated s_0 (seq=0) must be suppressed from delivery.
	first, err := wire.Build(wire.TypeData, 1, 2, []byte("a"), 0, clock.Time())
	require.NoError(t, err)
	dup, err := wire.Build(wire.TypeData, 1, 2, []byte("a-repeat"), 0, clock.Time())
	require.NoError(t, err)
	next, err := wire.Build(wire.TypeData, 1, 2, []byte("b"), 1, clock.Time())
	require.NoError(t, err)

	radio.deliver(wire.Encode(first))
	radio.deliver(wire.Encode(dup))
	radio.deliver(wire.Encode(next))

	got1, ok := recv.recvData.Take(ctx)
	require.True(t, ok)
	require.Equal(t, []byte("a"), got1.Payload)

	got2, ok := recv.recvData.Take(ctx)
	require.True(t, ok)
	require.Equal(t, []byte("b"), got2.Payload, "the duplicate must not be delivered between a and b")

	// All three frames, including the duplicate, are still ACKed.
	acks := map[uint16]int{}
	for i := 0; i < 3; i++ {
		ack, ok := recv.sendAck.Take(ctx)
		require.True(t, ok)
		require.Equal(t, wire.TypeAck, ack.Type)
		acks[ack.Seq]++
	}
	require.Equal(t, 2, acks[0], "both the original and duplicate seq=0 frames are ACKed")
	require.Equal(t, 1, acks[1])
}

// TestReceiverDispatchesAckAndBeacon verifies ACK frames land on recv_ack
// and beacon frames roll the clock forward via ConsumeBeacon, without
// touching recv_data.
func TestReceiverDispatchesAckAndBeacon(t *testing.T) {
	recv, radio, clock := newTestReceiver(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recv.Run(ctx)

	ack, err := wire.Build(wire.TypeAck, 1, 2, nil, 9, clock.Time())
	require.NoError(t, err)
	radio.deliver(wire.Encode(ack))

	got, ok := recv.recvAck.Take(ctx)
	require.True(t, ok)
	require.Equal(t, uint16(9), got.Seq)

	before := clock.Time()
	future := before + time.Hour
	beacon, err := wire.Build(wire.TypeBeacon, wire.BroadcastAddr, 3, encodeU64(future), 0, before)
	require.NoError(t, err)
	radio.deliver(wire.Encode(beacon))

	require.Eventually(t, func() bool {
		return clock.Time() >= before+time.Hour
	}, time.Second, time.Millisecond)

	require.Equal(t, 0, recv.recvData.Len())
}

// TestReceiverDropsFramesNotAddressedToUs verifies the cheap dest-filter
// discards frames for other hosts (and non-broadcast) before they can reach
// recv_data or recv_ack.
func TestReceiverDropsFramesNotAddressedToUs(t *testing.T) {
	recv, radio, clock := newTestReceiver(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recv.Run(ctx)

	other, err := wire.Build(wire.TypeData, 99, 2, []byte("not for us"), 1, clock.Time())
	require.NoError(t, err)
	radio.deliver(wire.Encode(other))

	mine, err := wire.Build(wire.TypeData, 1, 2, []byte("for us"), 1, clock.Time())
	require.NoError(t, err)
	radio.deliver(wire.Encode(mine))

	got, ok := recv.recvData.Take(ctx)
	require.True(t, ok)
	require.Equal(t, []byte("for us"), got.Payload)
}

// TestReceiverDropsMalformedFrames verifies a CRC mismatch or too-short
// frame is silently dropped rather than delivered or ACKed.
func TestReceiverDropsMalformedFrames(t *testing.T) {
	recv, radio, _ := newTestReceiver(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recv.Run(ctx)

	radio.deliver([]byte{0, 0, 0, 1}) // too short
	radio.deliver([]byte{0, 0, 0, 1, 0, 2, 0xFF, 0xFF, 0xFF, 0xFF}) // bad CRC

	good, err := wire.Build(wire.TypeData, 1, 2, []byte("ok"), 1, 0)
	require.NoError(t, err)
	radio.deliver(wire.Encode(good))

	got, ok := recv.recvData.Take(ctx)
	require.True(t, ok)
	require.Equal(t, []byte("ok"), got.Payload)
}

// TestReceiverDropsNewFrameWhenRecvDataFull verifies a full recv_data queue
// drops the new arrival rather than blocking the receiver loop.
func TestReceiverDropsNewFrameWhenRecvDataFull(t *testing.T) {
	radio := newFakeRadio()
	clock := NewClock(1, ClockConfig{}, nil)
	recv := NewReceiver(1, radio, clock,
		queue.New[wire.Frame](1), queue.New[wire.Frame](5), queue.New[wire.Frame](5), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recv.Run(ctx)

	first, err := wire.Build(wire.TypeData, 1, 2, []byte("first"), 1, 0)
	require.NoError(t, err)
	second, err := wire.Build(wire.TypeData, 1, 2, []byte("second"), 2, 0)
	require.NoError(t, err)

	radio.deliver(wire.Encode(first))
	require.Eventually(t, func() bool { return recv.recvData.Len() == 1 }, time.Second, time.Millisecond)

	radio.deliver(wire.Encode(second))

	// Both frames are still ACKed even though the second was dropped on
	// delivery.
	require.Eventually(t, func() bool { return recv.sendAck.Len() == 2 }, time.Second, time.Millisecond)

	got, ok := recv.recvData.Take(ctx)
	require.True(t, ok)
	require.Equal(t, []byte("first"), got.Payload)
	require.Equal(t, 0, recv.recvData.Len())
}
