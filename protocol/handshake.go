package protocol

import "errors"

// Handshake request layout (12 bytes, big endian)
const (
	HANDSHAKE_MARKER_1     = 0xAA
	HANDSHAKE_MARKER_2     = 0xBB
	HANDSHAKE_END_MARKER_1 = 0xCC
	HANDSHAKE_END_MARKER_2 = 0xDD

	MSG_TYPE_TIMESYNC = 0x02

	HANDSHAKE_IDX_TYPE      = 2
	HANDSHAKE_IDX_TIMESTAMP = 3
	HANDSHAKE_IDX_REG_ADDR  = 7
	HANDSHAKE_IDX_REG_VAL   = 8
	HANDSHAKE_IDX_CHECKSUM  = 9

	HandshakeSize = 12
)

// Configuration register addresses
const (
	REG_BAUD_RATE = 0x01
)

// Clock sanity bounds: a host clock earlier than ~September 2020 is
// assumed unset, and a fixed fallback is sent instead. The device has
// no other source of wall-clock time.
const (
	clockSanityEpoch = 1600000000
	fallbackEpoch    = 1500000000
)

// Handshake response classification
var (
	// ErrNoResponse means the device sent nothing back.
	ErrNoResponse = errors.New("no handshake response from device")
	// ErrDeviceNotReady means the device answered with all zeros.
	ErrDeviceNotReady = errors.New("device not ready (all-zero handshake response)")
)

// SanitizeClock validates a wall-clock reading for the handshake
// timestamp, substituting the fallback epoch when the host clock is
// implausibly early.
func SanitizeClock(now int64) uint32 {
	if now < clockSanityEpoch {
		return fallbackEpoch
	}
	return uint32(now)
}

// BuildHandshake constructs the 12-byte time-sync request carrying a
// Unix timestamp and one register write:
//
//	[AA BB] [02] [timestamp x4] [reg addr] [reg val] [checksum] [CC DD]
//
// The checksum is the truncated sum of the bytes between the start and
// end markers, checksum excluded.
func BuildHandshake(timestamp uint32, regAddr, regVal byte) []byte {
	packet := make([]byte, HandshakeSize)
	packet[0] = HANDSHAKE_MARKER_1
	packet[1] = HANDSHAKE_MARKER_2
	packet[HANDSHAKE_IDX_TYPE] = MSG_TYPE_TIMESYNC
	packet[HANDSHAKE_IDX_TIMESTAMP] = byte(timestamp >> 24)
	packet[HANDSHAKE_IDX_TIMESTAMP+1] = byte(timestamp >> 16)
	packet[HANDSHAKE_IDX_TIMESTAMP+2] = byte(timestamp >> 8)
	packet[HANDSHAKE_IDX_TIMESTAMP+3] = byte(timestamp)
	packet[HANDSHAKE_IDX_REG_ADDR] = regAddr
	packet[HANDSHAKE_IDX_REG_VAL] = regVal
	var sum byte
	for i := HANDSHAKE_IDX_TYPE; i < HANDSHAKE_IDX_CHECKSUM; i++ {
		sum += packet[i]
	}
	packet[HANDSHAKE_IDX_CHECKSUM] = sum
	packet[10] = HANDSHAKE_END_MARKER_1
	packet[11] = HANDSHAKE_END_MARKER_2
	return packet
}

// ClassifyResponse inspects whatever bytes the device sent back after a
// handshake request. The device cannot be interrogated synchronously for
// an ACK, so any sign of life counts as success: a data-frame marker
// anywhere in the response, or any non-zero content (the device is
// already streaming). All zeros means the device is not ready yet, and
// an empty response means nothing arrived at all. A false positive here
// is caught later by frame verification in the reader loop; a false
// negative would waste a whole session-start attempt.
func ClassifyResponse(response []byte) error {
	if len(response) == 0 {
		return ErrNoResponse
	}
	for i := 0; i+1 < len(response); i++ {
		if response[i] == FRAME_MARKER_1 && response[i+1] == FRAME_MARKER_2 {
			return nil
		}
	}
	for _, b := range response {
		if b != 0x00 {
			return nil
		}
	}
	return ErrDeviceNotReady
}
