package wire

import (
	"encoding/binary"
	"hash/crc32"
	"time"
)

// Frame is a decoded 802.11~ frame. Layout on the wire, big-endian
// throughout:
//
//	control(2) | dest(2) | src(2) | payload(0..MaxPayloadSize) | crc32(4)
//
// The control word is TTTRSSSS SSSSSSSS: 3 type bits, 1 retry bit, and a
// 12-bit sequence number split across the low nibble of the first byte and
// all of the second byte.
//
// A Frame built by Build/Decode is a value type; mutating helpers
// (SetRetry, SetSequenceNumber, SetPayload) return a new Frame with the CRC
// recomputed rather than mutating in place, so a Frame already sitting in a
// queue can never be changed out from under its owner.
type Frame struct {
	Type    byte
	Retry   bool
	Seq     uint16
	Dest    uint16
	Src     uint16
	Payload []byte

	// CRC is the value carried by (or computed for) this frame. It is
	// populated by Decode from the wire and recomputed by Build/mutators;
	// callers never need to set it themselves.
	CRC uint32

	// InstantiatedAt is the local clock time (in the SyncClock's logical
	// time domain) at which this frame was built or received. The
	// sender's outbound-ACK expedite path uses it to measure how long an
	// ACK has been sitting in send_ack before SIFS has elapsed.
	InstantiatedAt time.Duration
}

// Build constructs a new Frame with retry cleared and a freshly computed
// CRC. seq must be in [0, MaxSeqNum]; payloads longer than MaxPayloadSize
// are rejected rather than silently truncated, since a truncated outbound
// data frame would silently corrupt the upper layer's payload.
func Build(typ byte, dest, src uint16, payload []byte, seq uint16, now time.Duration) (Frame, error) {
	if seq > MaxSeqNum {
		return Frame{}, ErrSeqOutOfRange
	}
	if len(payload) > MaxPayloadSize {
		return Frame{}, ErrPayloadTooLarge
	}
	f := Frame{
		Type:           typ,
		Retry:          false,
		Seq:            seq,
		Dest:           dest,
		Src:            src,
		Payload:        payload,
		InstantiatedAt: now,
	}
	f.CRC = f.computeCRC()
	return f, nil
}

// Encode serializes f into its on-the-wire byte representation.
func Encode(f Frame) []byte {
	n := HeaderSize + len(f.Payload) + CRCSize
	buf := make([]byte, n)

	buf[0] = (f.Type&typeMask)<<typeShift | byte((f.Seq>>8)&seqHiMask)
	if f.Retry {
		buf[0] |= retryBit
	}
	buf[1] = byte(f.Seq & 0xFF)

	binary.BigEndian.PutUint16(buf[2:4], f.Dest)
	binary.BigEndian.PutUint16(buf[4:6], f.Src)

	if len(f.Payload) > 0 {
		copy(buf[HeaderSize:], f.Payload)
	}

	binary.BigEndian.PutUint32(buf[n-CRCSize:], f.computeCRC())

	return buf
}

// Decode parses a byte slice into a Frame, validating length and CRC. now
// is stamped onto the returned frame's InstantiatedAt.
func Decode(data []byte, now time.Duration) (Frame, error) {
	if len(data) < MinFrameSize {
		return Frame{}, ErrShortFrame
	}

	payloadLen := len(data) - HeaderSize - CRCSize
	crcOffset := HeaderSize + payloadLen

	gotCRC := binary.BigEndian.Uint32(data[crcOffset : crcOffset+CRCSize])
	wantCRC := crc32.ChecksumIEEE(data[:crcOffset])
	if gotCRC != wantCRC {
		return Frame{}, ErrBadCRC
	}

	f := Frame{
		Type:           (data[0] >> typeShift) & typeMask,
		Retry:          data[0]&retryBit != 0,
		Seq:            uint16(data[0]&seqHiMask)<<8 | uint16(data[1]),
		Dest:           binary.BigEndian.Uint16(data[2:4]),
		Src:            binary.BigEndian.Uint16(data[4:6]),
		CRC:            gotCRC,
		InstantiatedAt: now,
	}
	if payloadLen > 0 {
		f.Payload = make([]byte, payloadLen)
		copy(f.Payload, data[HeaderSize:crcOffset])
	}
	return f, nil
}

// ParseDest cheaply extracts just the destination address from a raw frame,
// without decoding the rest of the frame or validating its CRC. The
// receiver uses this to discard frames not addressed to it before paying
// for a full decode.
func ParseDest(data []byte) (uint16, error) {
	if len(data) <= ControlSize+AddrSize {
		return 0, ErrShortFrame
	}
	return binary.BigEndian.Uint16(data[ControlSize : ControlSize+AddrSize]), nil
}

// SetRetry returns a copy of f with the retry flag set and CRC recomputed.
func (f Frame) SetRetry(retry bool) Frame {
	f.Retry = retry
	f.CRC = f.computeCRC()
	return f
}

// SetSequenceNumber returns a copy of f with a new sequence number and CRC
// recomputed.
func (f Frame) SetSequenceNumber(seq uint16) (Frame, error) {
	if seq > MaxSeqNum {
		return Frame{}, ErrSeqOutOfRange
	}
	f.Seq = seq
	f.CRC = f.computeCRC()
	return f, nil
}

// SetPayload returns a copy of f with a new payload and CRC recomputed.
func (f Frame) SetPayload(payload []byte) (Frame, error) {
	if len(payload) > MaxPayloadSize {
		return Frame{}, ErrPayloadTooLarge
	}
	f.Payload = payload
	f.CRC = f.computeCRC()
	return f, nil
}

// Size returns the on-the-wire size of f in bytes.
func (f Frame) Size() int {
	return HeaderSize + len(f.Payload) + CRCSize
}

// IsBeacon reports whether f is a beacon frame.
func (f Frame) IsBeacon() bool {
	return f.Type == TypeBeacon
}

func (f Frame) computeCRC() uint32 {
	buf := make([]byte, HeaderSize+len(f.Payload))

	buf[0] = (f.Type&typeMask)<<typeShift | byte((f.Seq>>8)&seqHiMask)
	if f.Retry {
		buf[0] |= retryBit
	}
	buf[1] = byte(f.Seq & 0xFF)

	binary.BigEndian.PutUint16(buf[2:4], f.Dest)
	binary.BigEndian.PutUint16(buf[4:6], f.Src)

	if len(f.Payload) > 0 {
		copy(buf[HeaderSize:], f.Payload)
	}

	return crc32.ChecksumIEEE(buf)
}

// Compare orders frames for priority queueing: ACK and BEACON frames sort
// before DATA frames. It returns a negative number if a should sort before
// b, zero if equal priority, and positive otherwise.
func Compare(a, b Frame) int {
	pa, pb := priority(a.Type), priority(b.Type)
	if pa != pb {
		return pa - pb
	}
	return int(a.Type) - int(b.Type)
}

// priority maps a frame type to a sort key where lower sorts first:
// control frames (ACK, BEACON) precede DATA frames.
func priority(t byte) int {
	if t == TypeData {
		return 1
	}
	return 0
}
