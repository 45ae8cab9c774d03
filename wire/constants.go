// Package wire implements the 802.11~ frame codec: encoding, decoding, and
// the fixed-offset bit layout shared by the sender and receiver state
// machines.
package wire

// Frame types, packed into the 3 high bits of the control byte.
const (
	TypeData   byte = 0
	TypeAck    byte = 1
	TypeBeacon byte = 2
)

const (
	// ControlSize is the 2-byte control word: type(3) | retry(1) | seq-high(4), seq-low(8).
	ControlSize = 2
	AddrSize    = 2
	HeaderSize  = ControlSize + AddrSize + AddrSize // 6
	CRCSize     = 4

	// MaxSeqNum is the largest representable 12-bit sequence number; sequence
	// counters wrap to 0 after this value.
	MaxSeqNum = 4095

	// MaxPayloadSize bounds a single frame's application payload.
	MaxPayloadSize = 2038

	// MaxFrameSize is the largest frame the codec will ever emit.
	MaxFrameSize = HeaderSize + MaxPayloadSize + CRCSize

	// MinFrameSize is the smallest byte slice that can possibly decode: header + CRC.
	MinFrameSize = HeaderSize + CRCSize

	// BroadcastAddr is both the beacon destination and the reserved beacon
	// source address; 0xFFFF.
	BroadcastAddr uint16 = 0xFFFF
)

const (
	typeShift = 5
	typeMask  = 0x07
	retryBit  = 0x10
	seqHiMask = 0x0F
)
