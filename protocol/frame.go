package protocol

// Data frame markers (big endian on the wire)
const (
	FRAME_MARKER_1 = 0xAB
	FRAME_MARKER_2 = 0xCD
	END_MARKER_1   = 0xDC
	END_MARKER_2   = 0xBA
)

// Frame field offsets shared by both generations
const (
	FRAME_IDX_MARKER    = 0
	FRAME_IDX_LENGTH    = 2
	FRAME_IDX_TIMESTAMP = 3
	FRAME_IDX_DATA      = 7
)

// NumChannels is the number of ADC channels carried by every frame.
const NumChannels = 8

// Generation selects the firmware wire format. The two deployed firmware
// revisions disagree on frame size, status-byte placement, the end marker
// and timestamp semantics, so the active generation is an explicit choice
// made once per session.
type Generation int

const (
	// GenV1 is the canonical 37-byte frame: a 3-byte ADS1299 status word
	// followed by 8x3 data bytes, an end marker, and absolute Unix-second
	// timestamps.
	GenV1 Generation = iota + 1
	// GenV2 is the 40-byte frame: one status byte before each 3-byte
	// channel field, no end marker, and timestamps carrying a millisecond
	// offset from a reference epoch captured at session start.
	GenV2
)

// Layout describes the byte layout of one frame generation.
type Layout struct {
	Gen          Generation
	FrameSize    int  // total bytes per frame, markers included
	ChecksumIdx  int  // offset of the additive checksum byte
	HasEndMarker bool // GenV1 carries 0xDC 0xBA after the checksum
	statusSpan   int  // status bytes before the first data byte of a channel group
	channelSpan  int  // bytes from one channel's data field to the next
}

// LayoutFor returns the frame layout for a firmware generation.
// Unknown generations fall back to GenV1, the canonical format.
func LayoutFor(gen Generation) Layout {
	if gen == GenV2 {
		return Layout{
			Gen:         GenV2,
			FrameSize:   40,
			ChecksumIdx: 39,
			statusSpan:  1,
			channelSpan: 4,
		}
	}
	return Layout{
		Gen:          GenV1,
		FrameSize:    37,
		ChecksumIdx:  34,
		HasEndMarker: true,
		statusSpan:   3,
		channelSpan:  3,
	}
}

// PayloadLen is the value of the length byte at FRAME_IDX_LENGTH:
// timestamp plus channel data, excluding markers, length and checksum.
func (l Layout) PayloadLen() byte {
	return byte(l.ChecksumIdx - FRAME_IDX_TIMESTAMP)
}

// ChannelIdx returns the offset of channel ch's first data byte.
// In GenV1 a single 3-byte status word precedes the whole data region;
// in GenV2 every channel carries its own status byte, which is skipped.
func (l Layout) ChannelIdx(ch int) int {
	if l.Gen == GenV2 {
		return FRAME_IDX_DATA + ch*l.channelSpan + l.statusSpan
	}
	return FRAME_IDX_DATA + l.statusSpan + ch*l.channelSpan
}

// Checksum computes the additive checksum of a frame: the sum of all
// bytes between the length field and the checksum byte, truncated to
// 8 bits.
func (l Layout) Checksum(frame []byte) byte {
	var sum byte
	for i := FRAME_IDX_LENGTH; i < l.ChecksumIdx; i++ {
		sum += frame[i]
	}
	return sum
}

// Timestamp extracts the 4-byte big-endian timestamp field.
func (l Layout) Timestamp(frame []byte) uint32 {
	return uint32(frame[FRAME_IDX_TIMESTAMP])<<24 |
		uint32(frame[FRAME_IDX_TIMESTAMP+1])<<16 |
		uint32(frame[FRAME_IDX_TIMESTAMP+2])<<8 |
		uint32(frame[FRAME_IDX_TIMESTAMP+3])
}

// ChannelCode extracts channel ch's 24-bit two's-complement ADC code
// and sign-extends it to 32 bits.
func (l Layout) ChannelCode(frame []byte, ch int) int32 {
	idx := l.ChannelIdx(ch)
	value := int32(frame[idx])<<16 | int32(frame[idx+1])<<8 | int32(frame[idx+2])
	if value&0x800000 != 0 {
		value |= ^int32(0xFFFFFF)
	}
	return value
}

// Verify reports whether the frame-sized slice at the start of buf is a
// well-formed frame: start marker, checksum, and (GenV1) end marker.
// buf must hold at least FrameSize bytes.
func (l Layout) Verify(buf []byte) bool {
	if buf[0] != FRAME_MARKER_1 || buf[1] != FRAME_MARKER_2 {
		return false
	}
	if l.Checksum(buf) != buf[l.ChecksumIdx] {
		return false
	}
	if l.HasEndMarker {
		if buf[l.FrameSize-2] != END_MARKER_1 || buf[l.FrameSize-1] != END_MARKER_2 {
			return false
		}
	}
	return true
}
