package x8

import (
	"math"
	"reflect"
	"testing"

	"github.com/sergev/cerelog/protocol"
)

// testLayout is the default 10-row layout: 8 EEG channels, then the
// timestamp and marker slots.
func testLayout() ChannelLayout {
	return ChannelLayout{
		NumRows:   10,
		EEG:       []int{0, 1, 2, 3, 4, 5, 6, 7},
		Timestamp: 8,
		Marker:    9,
	}
}

// testFrame builds a valid frame for the given generation.
func testFrame(gen protocol.Generation, timestamp uint32, codes [protocol.NumChannels]uint32) []byte {
	l := protocol.LayoutFor(gen)
	frame := make([]byte, l.FrameSize)
	frame[0] = protocol.FRAME_MARKER_1
	frame[1] = protocol.FRAME_MARKER_2
	frame[protocol.FRAME_IDX_LENGTH] = l.PayloadLen()
	frame[protocol.FRAME_IDX_TIMESTAMP] = byte(timestamp >> 24)
	frame[protocol.FRAME_IDX_TIMESTAMP+1] = byte(timestamp >> 16)
	frame[protocol.FRAME_IDX_TIMESTAMP+2] = byte(timestamp >> 8)
	frame[protocol.FRAME_IDX_TIMESTAMP+3] = byte(timestamp)
	for ch := 0; ch < protocol.NumChannels; ch++ {
		idx := l.ChannelIdx(ch)
		frame[idx] = byte(codes[ch] >> 16)
		frame[idx+1] = byte(codes[ch] >> 8)
		frame[idx+2] = byte(codes[ch])
	}
	frame[l.ChecksumIdx] = l.Checksum(frame)
	if l.HasEndMarker {
		frame[l.FrameSize-2] = protocol.END_MARKER_1
		frame[l.FrameSize-1] = protocol.END_MARKER_2
	}
	return frame
}

func TestDecodeVoltageScale(t *testing.T) {
	decoder, err := NewDecoder(protocol.GenV1, testLayout())
	if err != nil {
		t.Fatalf("NewDecoder() returned error: %v", err)
	}

	// ADC code 1 is one LSB: (2 * 4.5 / 24) / 2^24 volts.
	frame := testFrame(protocol.GenV1, 1700000000, [protocol.NumChannels]uint32{0x000001})
	row := decoder.Decode(frame)

	expected := (2.0 * 4.5 / 24.0) / float64(1<<24)
	if row[0] != expected {
		t.Errorf("channel 0 = %g volts, expected %g", row[0], expected)
	}
	for ch := 1; ch < protocol.NumChannels; ch++ {
		if row[ch] != 0 {
			t.Errorf("channel %d = %g volts, expected 0", ch, row[ch])
		}
	}
	if row[8] != 1700000000 {
		t.Errorf("timestamp = %g, expected 1700000000", row[8])
	}
	if row[9] != 0 {
		t.Errorf("marker = %g, expected 0", row[9])
	}
}

// The conversion must be linear and odd-symmetric: code v and code
// 2^24-v decode to exact negatives.
func TestDecodeOddSymmetry(t *testing.T) {
	decoder, err := NewDecoder(protocol.GenV1, testLayout())
	if err != nil {
		t.Fatalf("NewDecoder() returned error: %v", err)
	}

	for _, v := range []uint32{1, 77, 4096, 0x123456, 0x7FFFFF} {
		pos := decoder.Decode(testFrame(protocol.GenV1, 0, [protocol.NumChannels]uint32{v}))
		neg := decoder.Decode(testFrame(protocol.GenV1, 0, [protocol.NumChannels]uint32{1<<24 - v}))
		if math.Abs(pos[0]+neg[0]) > 1e-18 {
			t.Errorf("codes 0x%06X / 0x%06X: %g and %g are not exact negatives", v, 1<<24-v, pos[0], neg[0])
		}
	}
}

func TestDecodeIdempotent(t *testing.T) {
	decoder, err := NewDecoder(protocol.GenV1, testLayout())
	if err != nil {
		t.Fatalf("NewDecoder() returned error: %v", err)
	}

	frame := testFrame(protocol.GenV1, 1699999999, [protocol.NumChannels]uint32{0x123456, 0xFFFFFE, 42, 0, 0x800000, 7, 8, 9})
	first := decoder.Decode(frame)
	second := decoder.Decode(frame)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("decoding the same frame twice differs:\n%v\n%v", first, second)
	}
}

// The channel layout controls where values land in the row.
func TestDecodeChannelMapping(t *testing.T) {
	layout := ChannelLayout{
		NumRows:   12,
		EEG:       []int{11, 10, 9, 8, 7, 6, 5, 4}, // reversed
		Timestamp: 0,
		Marker:    1,
	}
	decoder, err := NewDecoder(protocol.GenV2, layout)
	if err != nil {
		t.Fatalf("NewDecoder() returned error: %v", err)
	}
	decoder.RefEpoch = 0

	frame := testFrame(protocol.GenV2, 0, [protocol.NumChannels]uint32{1, 0, 0, 0, 0, 0, 0, 2})
	row := decoder.Decode(frame)
	if len(row) != 12 {
		t.Fatalf("row width = %d, expected 12", len(row))
	}
	lsb := (2.0 * 4.5 / 24.0) / float64(1<<24)
	if row[11] != lsb {
		t.Errorf("ADC channel 0 should land in row 11, got %g there", row[11])
	}
	if row[4] != 2*lsb {
		t.Errorf("ADC channel 7 should land in row 4, got %g there", row[4])
	}
}

// GenV1 timestamps are absolute Unix seconds; GenV2 timestamps carry a
// millisecond offset added to the captured reference epoch.
func TestDecodeTimestampSemantics(t *testing.T) {
	v1, err := NewDecoder(protocol.GenV1, testLayout())
	if err != nil {
		t.Fatalf("NewDecoder() returned error: %v", err)
	}
	row := v1.Decode(testFrame(protocol.GenV1, 1700000123, [protocol.NumChannels]uint32{}))
	if row[8] != 1700000123 {
		t.Errorf("GenV1 timestamp = %g, expected 1700000123", row[8])
	}

	v2, err := NewDecoder(protocol.GenV2, testLayout())
	if err != nil {
		t.Fatalf("NewDecoder() returned error: %v", err)
	}
	v2.RefEpoch = 1700000000
	row = v2.Decode(testFrame(protocol.GenV2, 2500, [protocol.NumChannels]uint32{}))
	if row[8] != 1700000002.5 {
		t.Errorf("GenV2 timestamp = %g, expected 1700000002.5", row[8])
	}
}

func TestChannelLayoutValidation(t *testing.T) {
	cases := []struct {
		name   string
		layout ChannelLayout
	}{
		{"zero rows", ChannelLayout{NumRows: 0, EEG: []int{0, 1, 2, 3, 4, 5, 6, 7}, Timestamp: 8, Marker: 9}},
		{"too few EEG channels", ChannelLayout{NumRows: 10, EEG: []int{0, 1, 2}, Timestamp: 8, Marker: 9}},
		{"timestamp out of range", ChannelLayout{NumRows: 10, EEG: []int{0, 1, 2, 3, 4, 5, 6, 7}, Timestamp: 10, Marker: 9}},
		{"marker negative", ChannelLayout{NumRows: 10, EEG: []int{0, 1, 2, 3, 4, 5, 6, 7}, Timestamp: 8, Marker: -1}},
		{"EEG index out of range", ChannelLayout{NumRows: 8, EEG: []int{0, 1, 2, 3, 4, 5, 6, 8}, Timestamp: 6, Marker: 7}},
	}
	for _, c := range cases {
		if _, err := NewDecoder(protocol.GenV1, c.layout); err == nil {
			t.Errorf("%s: NewDecoder() should have failed", c.name)
		}
	}

	if _, err := NewDecoder(protocol.GenV1, testLayout()); err != nil {
		t.Errorf("valid layout rejected: %v", err)
	}
}
