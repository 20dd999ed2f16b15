package protocol

// Scanner extracts well-formed data frames from a raw byte stream.
//
// The stream is unreliable: frames may arrive split across reads, with
// garbage between them, or corrupted. The scanner resynchronizes by
// advancing one byte at a time whenever the marker, checksum or end
// marker does not line up, so it always makes forward progress and
// never consumes a partial frame.
type Scanner struct {
	Layout Layout
}

// NewScanner returns a scanner for the given firmware generation.
func NewScanner(gen Generation) Scanner {
	return Scanner{Layout: LayoutFor(gen)}
}

// Scan walks buf from the front and returns every verified frame found,
// plus the number of bytes consumed. Emitted frames are copies and do
// not alias buf. Trailing bytes that cannot hold a full frame are left
// unconsumed; the caller retains them for the next read cycle.
func (s Scanner) Scan(buf []byte) (frames [][]byte, consumed int) {
	size := s.Layout.FrameSize
	pos := 0
	for pos+size <= len(buf) {
		if !s.Layout.Verify(buf[pos : pos+size]) {
			// Garbage or a false marker match: resync byte by byte.
			pos++
			continue
		}
		frame := make([]byte, size)
		copy(frame, buf[pos:pos+size])
		frames = append(frames, frame)
		pos += size
	}
	return frames, pos
}
