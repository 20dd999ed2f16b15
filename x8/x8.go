// Package x8 drives the Cerelog X8 eight-channel bioamplifier over a
// serial link: the baud-rate/time-sync handshake, the background reader
// loop that turns the raw byte stream into per-channel voltage rows,
// and the start/stop lifecycle around them.
package x8

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sergev/cerelog/protocol"
	"github.com/sergev/cerelog/transport"
)

// StreamState is the lifecycle of one acquisition session.
type StreamState int

const (
	// StateIdle: session prepared, no reader loop running.
	StateIdle StreamState = iota
	// StateAwaitingFirstSample: reader launched, no sample seen yet.
	StateAwaitingFirstSample
	// StateStreaming: first sample delivered, data is flowing.
	StateStreaming
	// StateStopped: reader stopped by an explicit stop request.
	StateStopped
	// StateTimedOut: the start attempt ended without a first sample.
	// Terminal for that attempt; the board may be started again.
	StateTimedOut
)

func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingFirstSample:
		return "awaiting first sample"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	case StateTimedOut:
		return "timed out"
	}
	return fmt.Sprintf("unknown (%d)", int(s))
}

// Sentinel errors returned by the session lifecycle.
var (
	ErrPortOpen         = errors.New("unable to open serial port")
	ErrWriteFailed      = errors.New("failed to write to device")
	ErrSyncTimeout      = errors.New("timed out waiting for data from device")
	ErrNotReady         = errors.New("board not ready")
	ErrNotPrepared      = errors.New("session not prepared")
	ErrAlreadyStreaming = errors.New("stream already running")
	ErrNotStreaming     = errors.New("no reader loop is active")
)

// SampleSink receives decoded sample rows from the reader loop. Push is
// called from the reader goroutine; the sink owns the row from the
// moment Push returns and the driver never touches it again.
type SampleSink interface {
	Push(row []float64)
}

// SinkFunc adapts a function to the SampleSink interface.
type SinkFunc func(row []float64)

func (f SinkFunc) Push(row []float64) { f(row) }

// Options configures a Board. Zero values get sensible defaults from
// the firmware's canonical operating point.
type Options struct {
	Port         string  // explicit serial port; empty means scan
	Baud         int     // streaming baud rate, default 115200
	TimeoutScale float64 // multiplier for every protocol delay, default 1.0
	BufferFrames int     // read-buffer size hint in frames, default 2
	Generation   protocol.Generation
	Channels     ChannelLayout
	LogEvery     int // streaming log throttle, default 1000 samples
	Sink         SampleSink
	Logger       zerolog.Logger
	Opener       transport.Opener // default transport.Open
}

// Protocol delays at TimeoutScale 1.0. The board resets when the port
// opens and needs real time before it will talk.
const (
	resetDelay         = 5 * time.Second
	handshakeSettle    = 5 * time.Second
	baudSwitchSettle   = 300 * time.Millisecond
	postSwitchSettle   = 300 * time.Millisecond
	postHandshakeDelay = 500 * time.Millisecond
	readTimeout        = 3 * time.Second
	firstSampleTimeout = 10 * time.Second
	pollInterval       = time.Millisecond
)

// maxConsecutiveEmptyReads bounds read starvation: this many empty
// polls in a row (about one second) ends the reader loop with a
// timeout instead of spinning on a dead device.
const maxConsecutiveEmptyReads = 1000

// handshakeResponseSize bounds the response read after the handshake;
// large enough to catch a full data frame if the device is already
// streaming.
const handshakeResponseSize = 50

// Board is one Cerelog X8 session. All exported methods are safe to
// call from the control goroutine; the reader loop is the only other
// goroutine and shares nothing but the state fields below.
type Board struct {
	opts    Options
	scanner protocol.Scanner
	log     zerolog.Logger

	mu       sync.Mutex
	state    StreamState
	port     transport.Port
	prepared bool
	cancel   context.CancelFunc
	done     chan struct{}
	first    chan struct{}
	runErr   error // reader exit cause, set before done closes
}

// New creates a Board from options. No I/O happens until Prepare.
func New(opts Options) *Board {
	if opts.Baud == 0 {
		opts.Baud = 115200
	}
	if opts.TimeoutScale <= 0 {
		opts.TimeoutScale = 1.0
	}
	if opts.BufferFrames < 2 {
		opts.BufferFrames = 2
	}
	if opts.Generation == 0 {
		opts.Generation = protocol.GenV1
	}
	if opts.LogEvery <= 0 {
		opts.LogEvery = 1000
	}
	if opts.Opener == nil {
		opts.Opener = transport.Open
	}
	if opts.Sink == nil {
		opts.Sink = SinkFunc(func([]float64) {})
	}
	return &Board{
		opts:    opts,
		scanner: protocol.NewScanner(opts.Generation),
		log:     opts.Logger,
		state:   StateIdle,
	}
}

// State returns the current stream state.
func (b *Board) State() StreamState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Board) scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) * b.opts.TimeoutScale)
}

// Prepare resolves and opens the serial port, performs the time-sync
// handshake at the boot baud rate, and switches the line to the
// streaming rate. It must be called once before Start.
func (b *Board) Prepare() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.prepared {
		return nil
	}

	name := transport.Resolve(b.opts.Port, b.opts.Opener, b.log)
	port, err := b.opts.Opener(name, protocol.DefaultBaudRate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPortOpen, err)
	}

	if err := b.prepare(port); err != nil {
		port.Close()
		return err
	}

	b.port = port
	b.prepared = true
	b.state = StateIdle
	b.log.Info().Str("port", name).Int("baud", b.opts.Baud).Msg("session prepared")
	return nil
}

// prepare runs the handshake sequence on an open port. Ownership of the
// port stays with the caller, which closes it on error.
func (b *Board) prepare(port transport.Port) error {
	// The board resets when the port opens; give it time to boot.
	b.log.Info().Msg("port opened, waiting for board reset")
	time.Sleep(b.scaled(resetDelay))

	if err := port.SetBaudRate(protocol.DefaultBaudRate); err != nil {
		return fmt.Errorf("%w: set handshake baud rate: %v", ErrWriteFailed, err)
	}
	if err := port.SetReadTimeout(b.scaled(readTimeout)); err != nil {
		return fmt.Errorf("%w: set read timeout: %v", ErrWriteFailed, err)
	}

	baudIdx, err := protocol.BaudIndex(b.opts.Baud)
	if err != nil {
		return err
	}
	if err := b.negotiate(port, protocol.REG_BAUD_RATE, baudIdx); err != nil {
		if errors.Is(err, ErrWriteFailed) {
			return err
		}
		// The device may already be streaming even without handshake
		// confirmation; the reader loop's frame verification settles it.
		b.log.Warn().Err(err).Msg("timestamp handshake failed, continuing with fallback time")
	}

	b.log.Info().Int("baud", b.opts.Baud).Msg("switching to streaming baud rate")
	if err := port.SetBaudRate(b.opts.Baud); err != nil {
		b.log.Warn().Err(err).Int("baud", protocol.DefaultBaudRate).
			Msg("failed to switch baud rate, continuing at boot rate")
	} else {
		// Partial frames straddle the rate switch; drain them.
		time.Sleep(b.scaled(baudSwitchSettle))
		flush := make([]byte, 1000)
		if n, err := port.Read(flush); err == nil && n > 0 {
			b.log.Debug().Int("bytes", n).Msg("flushed serial buffer after baud switch")
		}
	}

	time.Sleep(b.scaled(postSwitchSettle))
	time.Sleep(b.scaled(postHandshakeDelay))
	return nil
}

// negotiate sends one handshake request and classifies whatever the
// device answers with.
func (b *Board) negotiate(port transport.Port, regAddr, regVal byte) error {
	now := time.Now().Unix()
	ts := protocol.SanitizeClock(now)
	if int64(ts) != now {
		b.log.Warn().Msg("system clock appears incorrect, using fallback timestamp")
	}

	packet := protocol.BuildHandshake(ts, regAddr, regVal)
	b.log.Info().Str("packet", hex.EncodeToString(packet)).Msg("sending handshake packet")
	if n, err := port.Write(packet); err != nil || n < len(packet) {
		return fmt.Errorf("%w: handshake request: %v", ErrWriteFailed, err)
	}

	// The firmware needs a settle interval before it answers.
	time.Sleep(b.scaled(handshakeSettle))

	response := make([]byte, handshakeResponseSize)
	n, err := port.Read(response)
	if err != nil {
		return fmt.Errorf("%w: handshake response: %v", ErrSyncTimeout, err)
	}
	if err := protocol.ClassifyResponse(response[:n]); err != nil {
		return fmt.Errorf("%w: %v", ErrSyncTimeout, err)
	}
	b.log.Info().Int("bytes", n).Msg("handshake successful")
	return nil
}

// Start launches the reader loop and blocks until the first decoded
// sample arrives, the reader fails, or the first-sample timeout
// elapses. It returns nil only once data is actually flowing. A start
// while a session is already running is rejected with
// ErrAlreadyStreaming and has no side effects.
func (b *Board) Start() error {
	b.mu.Lock()
	if !b.prepared {
		b.mu.Unlock()
		return ErrNotPrepared
	}
	if b.state == StateStreaming || b.state == StateAwaitingFirstSample {
		b.mu.Unlock()
		return ErrAlreadyStreaming
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	b.first = make(chan struct{})
	b.runErr = nil
	b.state = StateAwaitingFirstSample
	port, done, first := b.port, b.done, b.first
	b.mu.Unlock()

	go b.readLoop(ctx, port, done, first)

	select {
	case <-first:
		return nil
	case <-done:
		// The reader exited before producing a sample: configuration
		// error, read starvation, or a concurrent stop.
		b.mu.Lock()
		err := b.runErr
		if b.state == StateAwaitingFirstSample {
			b.state = StateTimedOut
		}
		b.mu.Unlock()
		if err == nil {
			err = ErrSyncTimeout
		}
		return err
	case <-time.After(b.scaled(firstSampleTimeout)):
		b.log.Warn().Msg("board timed out, stopping reader loop")
		cancel()
		<-done
		b.mu.Lock()
		b.state = StateTimedOut
		b.mu.Unlock()
		return ErrSyncTimeout
	}
}

// Stop signals the reader loop to exit and waits for it. It is safe to
// call while a Start is still blocked waiting for the first sample (the
// start then returns a timeout outcome) and safe when the reader has
// already exited on its own. Stopping a board that is not running is a
// benign rejection.
func (b *Board) Stop() error {
	b.mu.Lock()
	if b.state != StateStreaming && b.state != StateAwaitingFirstSample {
		b.mu.Unlock()
		return ErrNotStreaming
	}
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	cancel()
	<-done

	b.mu.Lock()
	b.state = StateStopped
	b.mu.Unlock()
	b.log.Info().Msg("stream stopped")
	return nil
}

// Release tears the session down: stops the reader if one is running
// and closes the serial port. The board returns to the unprepared
// state and may be prepared again.
func (b *Board) Release() error {
	if err := b.Stop(); err != nil && !errors.Is(err, ErrNotStreaming) {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port != nil {
		b.port.Close()
		b.port = nil
	}
	b.prepared = false
	b.state = StateIdle
	return nil
}

// Config is the runtime configuration entry point. The current firmware
// negotiates nothing at runtime; the baud rate is configured through the
// handshake during Prepare.
func (b *Board) Config(config string) (string, error) {
	return "", fmt.Errorf("runtime configuration not supported, baud rate is set by the handshake")
}
