package wire

import "errors"

var (
	// ErrShortFrame is returned when a byte slice is too small to hold a
	// valid header + CRC.
	ErrShortFrame = errors.New("wire: frame too short")
	// ErrBadCRC is returned when the stored CRC does not match the
	// recomputed CRC.
	ErrBadCRC = errors.New("wire: CRC mismatch")
	// ErrPayloadTooLarge is returned when a caller attempts to build a
	// frame whose payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("wire: payload exceeds maximum size")
	// ErrSeqOutOfRange is returned when a caller supplies a sequence number
	// outside [0, MaxSeqNum].
	ErrSeqOutOfRange = errors.New("wire: sequence number out of range")
)
