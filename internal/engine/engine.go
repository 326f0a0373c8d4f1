package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/steffomix/simplex-audio-repeater/internal/archive"
	"github.com/steffomix/simplex-audio-repeater/internal/audio"
	"github.com/steffomix/simplex-audio-repeater/internal/config"
	"github.com/steffomix/simplex-audio-repeater/internal/device"
	"github.com/steffomix/simplex-audio-repeater/internal/envelope"
	"github.com/steffomix/simplex-audio-repeater/internal/eq"
	"github.com/steffomix/simplex-audio-repeater/internal/metrics"
)

// State is the engine's externally visible state.
type State int

const (
	StateIdle State = iota
	StateDeadTime
	StateRecording
	StatePlaying
	StateStreaming
)

// String returns the state name used in status responses and logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDeadTime:
		return "dead_time"
	case StateRecording:
		return "recording"
	case StatePlaying:
		return "playing"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// readBackoff is the pause after a transient device read or write fault.
const readBackoff = 10 * time.Millisecond

// Engine owns the device streams and the processing goroutines. The mode
// is fixed at Start; all other parameters are live through the store.
type Engine struct {
	format      audio.Format
	outChannels int

	params  *config.Store
	input   device.InputStream
	output  device.OutputStream
	bank    *eq.Bank
	metrics *metrics.Metrics
	archive *archive.Writer // nil when archiving is disabled

	follower *envelope.Follower
	ring     *audio.DelayRing

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	running       bool
	mode          config.Mode
	state         State
	rawLevel      float64
	dampedLevel   float64
	progress      float64
	deadTimeEnd   time.Time
	chunksRead    uint64
	chunksWritten uint64
	episodes      uint64
}

// Status is a point-in-time snapshot of the engine for the control API.
type Status struct {
	Running           bool      `json:"running"`
	Mode              string    `json:"mode"`
	State             string    `json:"state"`
	StatusText        string    `json:"status_text"`
	RawLevel          float64   `json:"raw_level"`
	DampedLevel       float64   `json:"damped_level"`
	Progress          float64   `json:"progress"`
	DeadTimeRemaining float64   `json:"dead_time_remaining_s"`
	RingOccupancy     int       `json:"ring_occupancy"`
	RingTarget        int       `json:"ring_target"`
	EQBands           []float64 `json:"eq_bands"`
	ChunksRead        uint64    `json:"chunks_read"`
	ChunksWritten     uint64    `json:"chunks_written"`
	Episodes          uint64    `json:"episodes"`
}

// New creates an engine over already-open device streams. The EQ bank is
// sized to the input layout; channel conversion to the output layout
// happens after filtering.
func New(format audio.Format, outChannels int, params *config.Store,
	input device.InputStream, output device.OutputStream,
	m *metrics.Metrics, arch *archive.Writer) (*Engine, error) {

	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}
	if outChannels != 1 && outChannels != 2 {
		return nil, fmt.Errorf("output channels must be 1 or 2, got %d", outChannels)
	}

	bank, err := eq.NewBank(format.SampleRate, format.Channels, eq.DefaultCenters, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter bank: %w", err)
	}

	return &Engine{
		format:      format,
		outChannels: outChannels,
		params:      params,
		input:       input,
		output:      output,
		bank:        bank,
		metrics:     m,
		archive:     arch,
		follower:    envelope.New(),
	}, nil
}

// Start launches the processing goroutines for the mode in the current
// parameter snapshot. The mode stays fixed until Stop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}

	p := e.params.Snapshot()
	target := e.targetDepth(p.PlaybackDelayMs)
	e.mode = p.Mode
	e.running = true
	e.deadTimeEnd = time.Time{}
	e.progress = 0
	e.ring = audio.NewDelayRing(target, e.format.ChunkFrames, e.format.Channels)
	e.mu.Unlock()

	ctx, e.cancel = context.WithCancel(ctx)

	e.metrics.SetRingDepth(e.ring.Len(), target)

	switch p.Mode {
	case config.ModeSimplex:
		e.setState(StateIdle)
		e.wg.Add(1)
		go e.runSimplex(ctx)
	case config.ModeDuplex:
		e.setState(StateStreaming)
		e.wg.Add(2)
		go e.runProducer(ctx)
		go e.runConsumer(ctx)
	default:
		e.cancel()
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return fmt.Errorf("unknown mode %q", p.Mode)
	}

	slog.Info("Engine started",
		"mode", p.Mode,
		"sample_rate", e.format.SampleRate,
		"chunk_frames", e.format.ChunkFrames,
		"input_channels", e.format.Channels,
		"output_channels", e.outChannels)
	return nil
}

// Stop cancels the processing goroutines and closes the device streams to
// unblock in-flight reads and writes, then waits for the goroutines to
// drain. All transient state is discarded.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.cancel()

	if err := e.input.Close(); err != nil {
		slog.Warn("Failed to close input stream", "error", err)
	}
	if err := e.output.Close(); err != nil {
		slog.Warn("Failed to close output stream", "error", err)
	}

	e.wg.Wait()

	e.follower.Reset()
	e.bank.Reset()
	e.ring.Clear(false, 0, 0)

	e.mu.Lock()
	e.running = false
	e.state = StateIdle
	e.progress = 0
	e.mu.Unlock()

	slog.Info("Engine stopped")
}

// Running reports whether the processing goroutines are active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Status returns a snapshot for the control API. Band centres come from
// the bank before e.mu is taken; the bank has its own lock.
func (e *Engine) Status() Status {
	centers := e.bank.Centers()

	e.mu.Lock()
	defer e.mu.Unlock()

	deadRemaining := 0.0
	if e.state == StateDeadTime {
		if r := time.Until(e.deadTimeEnd).Seconds(); r > 0 {
			deadRemaining = r
		}
	}

	s := Status{
		Running:           e.running,
		Mode:              string(e.mode),
		State:             e.state.String(),
		StatusText:        e.statusTextLocked(deadRemaining),
		RawLevel:          e.rawLevel,
		DampedLevel:       e.dampedLevel,
		Progress:          e.progress,
		DeadTimeRemaining: deadRemaining,
		EQBands:           centers,
		ChunksRead:        e.chunksRead,
		ChunksWritten:     e.chunksWritten,
		Episodes:          e.episodes,
	}

	if e.ring != nil {
		s.RingOccupancy = e.ring.Len()
		s.RingTarget = e.ring.Target()
	}

	return s
}

func (e *Engine) statusTextLocked(deadRemaining float64) string {
	if !e.running {
		return "stopped"
	}

	switch e.state {
	case StateIdle:
		return "waiting for signal"
	case StateDeadTime:
		return fmt.Sprintf("dead time: %.1fs remaining", deadRemaining)
	case StateRecording:
		return "recording"
	case StatePlaying:
		return "playing back"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// targetDepth converts a delay in milliseconds to a ring depth in chunks.
func (e *Engine) targetDepth(delayMs float64) int {
	chunks := int(delayMs/1000*float64(e.format.SampleRate)/float64(e.format.ChunkFrames) + 0.5)
	if chunks < 2 {
		chunks = 2
	}
	return chunks
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.metrics.SetEngineState(int(s))
}

func (e *Engine) setLevels(raw, damped float64) {
	e.mu.Lock()
	e.rawLevel = raw
	e.dampedLevel = damped
	e.mu.Unlock()
	e.metrics.SetLevels(raw, damped)
}

func (e *Engine) setProgress(p float64) {
	e.mu.Lock()
	e.progress = p
	e.mu.Unlock()
}

// readChunk reads one chunk, counting it and updating the level meter and
// envelope. Transient read faults are logged with a short backoff; the
// second return value is false when the caller should retry.
func (e *Engine) readChunk(ctx context.Context, p config.Params) (audio.Chunk, bool) {
	chunk, err := e.input.ReadChunk()
	if err != nil {
		if ctx.Err() != nil {
			return audio.Chunk{}, false
		}
		e.metrics.RecordReadError()
		slog.Warn("Input read failed", "error", err)
		time.Sleep(readBackoff)
		return audio.Chunk{}, false
	}

	e.mu.Lock()
	e.chunksRead++
	e.mu.Unlock()
	e.metrics.RecordChunkRead()

	raw := audio.Level(chunk)
	damped := e.follower.Update(raw, p.RiseTimeMs, p.FallTimeMs)
	e.setLevels(raw, damped)

	return chunk, true
}

// writeChunk writes one chunk, counting it. Transient write faults are
// logged with a short backoff and the chunk is dropped.
func (e *Engine) writeChunk(ctx context.Context, c audio.Chunk) {
	if err := e.output.WriteChunk(c); err != nil {
		if ctx.Err() != nil {
			return
		}
		e.metrics.RecordWriteError()
		slog.Warn("Output write failed", "error", err)
		time.Sleep(readBackoff)
		return
	}

	e.mu.Lock()
	e.chunksWritten++
	e.mu.Unlock()
	e.metrics.RecordChunkWritten()
}

// processChunk runs one chunk through the filter bank, gain stage, and
// channel converter in that order.
func (e *Engine) processChunk(c audio.Chunk, p config.Params) audio.Chunk {
	if p.EQEnabled {
		e.bank.SetGains(p.EQGains)
		c = e.bank.Apply(c)
	}

	c = audio.ApplyGain(c, p.GainDB)

	if c.Channels != e.outChannels {
		c = audio.ConvertChannels(c, e.outChannels)
	}

	return c
}
