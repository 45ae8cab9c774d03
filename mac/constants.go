package mac

import "time"

// Radio-layer timing constants. These mirror the constants the original
// RF simulator exposed (a_slot_time, a_sifs_time, a_cw_min, a_cw_max,
// dot11_retry_limit) and are overridable per mac.Link via LinkConfig.
const (
	DefaultSlotTime    = 20 * time.Millisecond
	DefaultSIFSTime    = 10 * time.Millisecond
	DefaultCWMin       = 31
	DefaultCWMax       = 1023
	DefaultRetryLimit  = 10
	DefaultRTTEstimate = 646 * time.Millisecond
)

// AlignmentUnit is the 50-unit slot boundary every wait-state transition
// must land on.
const AlignmentUnit = 50 * time.Millisecond

// AlignmentEpsilon is the slack allowed around an AlignmentUnit boundary.
const AlignmentEpsilon = 2 * time.Millisecond

// PIFS and DIFS are derived from SIFS and slot time per spec: PIFS = SIFS +
// slot, DIFS = SIFS + 2*slot.
func pifs(sifs, slot time.Duration) time.Duration {
	return sifs + slot
}

func difs(sifs, slot time.Duration) time.Duration {
	return sifs + 2*slot
}
