package protocol

import (
	"testing"
)

// buildFrame constructs a well-formed frame for the given layout with
// the supplied timestamp and per-channel 24-bit codes. Status bytes are
// filled with a fixed pattern; they are covered by the checksum but
// otherwise ignored.
func buildFrame(l Layout, timestamp uint32, codes [NumChannels]uint32) []byte {
	frame := make([]byte, l.FrameSize)
	frame[0] = FRAME_MARKER_1
	frame[1] = FRAME_MARKER_2
	frame[FRAME_IDX_LENGTH] = l.PayloadLen()
	frame[FRAME_IDX_TIMESTAMP] = byte(timestamp >> 24)
	frame[FRAME_IDX_TIMESTAMP+1] = byte(timestamp >> 16)
	frame[FRAME_IDX_TIMESTAMP+2] = byte(timestamp >> 8)
	frame[FRAME_IDX_TIMESTAMP+3] = byte(timestamp)
	for i := FRAME_IDX_DATA; i < l.ChecksumIdx; i++ {
		frame[i] = 0xC0 // status filler, overwritten below for data bytes
	}
	for ch := 0; ch < NumChannels; ch++ {
		idx := l.ChannelIdx(ch)
		frame[idx] = byte(codes[ch] >> 16)
		frame[idx+1] = byte(codes[ch] >> 8)
		frame[idx+2] = byte(codes[ch])
	}
	frame[l.ChecksumIdx] = l.Checksum(frame)
	if l.HasEndMarker {
		frame[l.FrameSize-2] = END_MARKER_1
		frame[l.FrameSize-1] = END_MARKER_2
	}
	return frame
}

func TestLayoutSizes(t *testing.T) {
	v1 := LayoutFor(GenV1)
	if v1.FrameSize != 37 || v1.ChecksumIdx != 34 || !v1.HasEndMarker {
		t.Errorf("GenV1 layout wrong: %+v", v1)
	}
	if v1.PayloadLen() != 31 {
		t.Errorf("GenV1 payload length = %d, expected 31", v1.PayloadLen())
	}

	v2 := LayoutFor(GenV2)
	if v2.FrameSize != 40 || v2.ChecksumIdx != 39 || v2.HasEndMarker {
		t.Errorf("GenV2 layout wrong: %+v", v2)
	}
	if v2.PayloadLen() != 36 {
		t.Errorf("GenV2 payload length = %d, expected 36", v2.PayloadLen())
	}
}

func TestChannelOffsets(t *testing.T) {
	// GenV1: one 3-byte status word, then 8x3 data bytes.
	v1 := LayoutFor(GenV1)
	for ch := 0; ch < NumChannels; ch++ {
		expected := 10 + 3*ch
		if idx := v1.ChannelIdx(ch); idx != expected {
			t.Errorf("GenV1 channel %d offset = %d, expected %d", ch, idx, expected)
		}
	}

	// GenV2: a status byte before every 3-byte data field.
	v2 := LayoutFor(GenV2)
	for ch := 0; ch < NumChannels; ch++ {
		expected := 8 + 4*ch
		if idx := v2.ChannelIdx(ch); idx != expected {
			t.Errorf("GenV2 channel %d offset = %d, expected %d", ch, idx, expected)
		}
	}

	// Last channel's data must end right before the checksum.
	if end := v1.ChannelIdx(NumChannels-1) + 3; end != v1.ChecksumIdx {
		t.Errorf("GenV1 data region ends at %d, checksum at %d", end, v1.ChecksumIdx)
	}
	if end := v2.ChannelIdx(NumChannels-1) + 3; end != v2.ChecksumIdx {
		t.Errorf("GenV2 data region ends at %d, checksum at %d", end, v2.ChecksumIdx)
	}
}

func TestChannelCodeSignExtension(t *testing.T) {
	layout := LayoutFor(GenV1)
	cases := []struct {
		code     uint32
		expected int32
	}{
		{0x000000, 0},
		{0x000001, 1},
		{0x7FFFFF, 8388607},
		{0x800000, -8388608},
		{0xFFFFFF, -1},
		{0xFFFFFE, -2},
	}
	for _, c := range cases {
		frame := buildFrame(layout, 1700000000, [NumChannels]uint32{c.code})
		if got := layout.ChannelCode(frame, 0); got != c.expected {
			t.Errorf("ChannelCode(0x%06X) = %d, expected %d", c.code, got, c.expected)
		}
	}
}

// Sign extension must be odd-symmetric: code v and code 2^24-v are
// exact negatives for v in the negative range.
func TestChannelCodeOddSymmetry(t *testing.T) {
	layout := LayoutFor(GenV2)
	for _, v := range []uint32{1, 2, 1000, 0x123456, 0x7FFFFF} {
		pos := buildFrame(layout, 0, [NumChannels]uint32{v})
		neg := buildFrame(layout, 0, [NumChannels]uint32{1<<24 - v})
		if layout.ChannelCode(pos, 0) != -layout.ChannelCode(neg, 0) {
			t.Errorf("codes 0x%06X and 0x%06X are not exact negatives: %d vs %d",
				v, 1<<24-v, layout.ChannelCode(pos, 0), layout.ChannelCode(neg, 0))
		}
	}
}

func TestTimestampField(t *testing.T) {
	layout := LayoutFor(GenV1)
	frame := buildFrame(layout, 1700000000, [NumChannels]uint32{})
	if got := layout.Timestamp(frame); got != 1700000000 {
		t.Errorf("Timestamp() = %d, expected 1700000000", got)
	}
}

func TestVerify(t *testing.T) {
	for _, gen := range []Generation{GenV1, GenV2} {
		layout := LayoutFor(gen)
		frame := buildFrame(layout, 42, [NumChannels]uint32{1, 2, 3, 4, 5, 6, 7, 8})
		if !layout.Verify(frame) {
			t.Errorf("gen %d: valid frame did not verify", gen)
		}

		// Any single corrupted byte must fail verification.
		for i := 0; i < layout.FrameSize; i++ {
			corrupt := make([]byte, len(frame))
			copy(corrupt, frame)
			corrupt[i] ^= 0xFF
			if layout.Verify(corrupt) {
				t.Errorf("gen %d: frame with byte %d corrupted still verified", gen, i)
			}
		}
	}
}
