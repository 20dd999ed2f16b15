package x8

import (
	"context"
	"fmt"
	"time"

	"github.com/sergev/cerelog/transport"
)

// logThrottle rates-limits per-sample logging. It is owned by the
// reader loop that created it, never shared.
type logThrottle struct {
	every int
	count int
}

// tick counts one sample and reports whether this one should be logged.
func (t *logThrottle) tick() bool {
	t.count++
	return t.every > 0 && t.count%t.every == 0
}

// readLoop is the background half of the session. It polls the
// transport, feeds the frame scanner, decodes verified frames into
// sample rows and pushes them to the sink. It exits when ctx is
// cancelled, on a configuration error, or after sustained read
// starvation. done is closed on exit; first is closed when the first
// row has been delivered.
func (b *Board) readLoop(ctx context.Context, port transport.Port, done chan<- struct{}, first chan<- struct{}) {
	defer close(done)

	decoder, err := NewDecoder(b.opts.Generation, b.opts.Channels)
	if err != nil {
		// Configuration error: the loop cannot run at all.
		b.log.Error().Err(err).Msg("invalid channel layout")
		b.exitWith(fmt.Errorf("%w: %v", ErrNotReady, err))
		return
	}
	decoder.RefEpoch = float64(time.Now().UnixMilli()) / 1000.0

	frameSize := b.scanner.Layout.FrameSize
	chunkSize := b.opts.BufferFrames * frameSize
	buf := make([]byte, 0, chunkSize)
	readBuf := make([]byte, chunkSize)

	throttle := logThrottle{every: b.opts.LogEvery}
	started := false
	emptyReads := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := port.Read(readBuf[:chunkSize-len(buf)])
		if err != nil || n == 0 {
			time.Sleep(pollInterval)
			emptyReads++
			if emptyReads >= maxConsecutiveEmptyReads {
				b.log.Warn().Msg("no data from device, giving up")
				b.exitWith(ErrSyncTimeout)
				return
			}
			continue
		}
		emptyReads = 0
		buf = append(buf, readBuf[:n]...)

		frames, consumed := b.scanner.Scan(buf)
		// Keep the unconsumed tail for the next read cycle.
		buf = buf[:copy(buf, buf[consumed:])]

		for _, frame := range frames {
			row := decoder.Decode(frame)
			b.opts.Sink.Push(row)

			if !started {
				started = true
				b.mu.Lock()
				if b.state == StateAwaitingFirstSample {
					b.state = StateStreaming
				}
				b.mu.Unlock()
				close(first)
				b.log.Info().Msg("received first sample, streaming started")
			}
			if throttle.tick() {
				b.log.Debug().
					Int("samples", throttle.count).
					Float64("timestamp", row[b.opts.Channels.Timestamp]).
					Float64("ch0_volts", row[b.opts.Channels.EEG[0]]).
					Msg("streaming")
			}
		}
	}
}

// exitWith records why the reader loop ended before closing done.
func (b *Board) exitWith(err error) {
	b.mu.Lock()
	b.runErr = err
	b.mu.Unlock()
}
