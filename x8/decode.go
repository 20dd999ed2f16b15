package x8

import (
	"fmt"

	"github.com/sergev/cerelog/protocol"
)

// ADS1299 front-end conversion constants
const (
	adcVref = 4.5 // volts
	adcGain = 24
)

// voltsPerCount converts a sign-extended 24-bit ADC code to volts.
const voltsPerCount = (2.0 * adcVref / adcGain) / (1 << 24)

// ChannelLayout maps decoded values into a sample row. It is supplied
// by the host session framework and describes where each ADC channel,
// the timestamp and the marker land in the row.
type ChannelLayout struct {
	NumRows   int   // total row width
	EEG       []int // row index per ADC channel, at least 8 entries
	Timestamp int   // row index of the timestamp slot
	Marker    int   // row index of the marker slot
}

// Validate checks the layout for missing fields and out-of-range
// indices. A bad layout is a configuration error: the reader loop
// cannot run at all with one.
func (l ChannelLayout) Validate() error {
	if l.NumRows <= 0 {
		return fmt.Errorf("channel layout has invalid row count %d", l.NumRows)
	}
	if len(l.EEG) < protocol.NumChannels {
		return fmt.Errorf("channel layout has %d EEG channels, need at least %d",
			len(l.EEG), protocol.NumChannels)
	}
	if l.Timestamp < 0 || l.Timestamp >= l.NumRows {
		return fmt.Errorf("timestamp channel index %d out of range [0, %d)", l.Timestamp, l.NumRows)
	}
	if l.Marker < 0 || l.Marker >= l.NumRows {
		return fmt.Errorf("marker channel index %d out of range [0, %d)", l.Marker, l.NumRows)
	}
	for ch := 0; ch < protocol.NumChannels; ch++ {
		if l.EEG[ch] < 0 || l.EEG[ch] >= l.NumRows {
			return fmt.Errorf("EEG channel index %d out of range [0, %d)", l.EEG[ch], l.NumRows)
		}
	}
	return nil
}

// Decoder converts verified frames into sample rows.
type Decoder struct {
	frame protocol.Layout
	rows  ChannelLayout

	// RefEpoch is the Unix time the GenV2 millisecond offsets are
	// relative to, captured at session start. Unused for GenV1, whose
	// frames carry absolute Unix seconds.
	RefEpoch float64
}

// NewDecoder builds a decoder for one firmware generation and channel
// layout. The layout is validated here; an error is fatal for the
// session, never transient.
func NewDecoder(gen protocol.Generation, rows ChannelLayout) (*Decoder, error) {
	if err := rows.Validate(); err != nil {
		return nil, err
	}
	return &Decoder{frame: protocol.LayoutFor(gen), rows: rows}, nil
}

// Decode turns one verified frame into a freshly allocated sample row.
// Each channel's 24-bit two's-complement code is sign-extended and
// scaled to volts; the timestamp and marker slots are filled per the
// channel layout. Decoding is pure: the same frame always yields the
// same row.
func (d *Decoder) Decode(frame []byte) []float64 {
	row := make([]float64, d.rows.NumRows)
	for ch := 0; ch < protocol.NumChannels; ch++ {
		code := d.frame.ChannelCode(frame, ch)
		row[d.rows.EEG[ch]] = float64(code) * voltsPerCount
	}
	row[d.rows.Timestamp] = d.timestamp(frame)
	row[d.rows.Marker] = 0.0
	return row
}

func (d *Decoder) timestamp(frame []byte) float64 {
	raw := d.frame.Timestamp(frame)
	if d.frame.Gen == protocol.GenV2 {
		return d.RefEpoch + float64(raw)/1000.0
	}
	return float64(raw)
}
