package audio

import (
	"fmt"
	"math"
	"time"
)

// Format describes the fixed PCM layout of a session. All chunks read from
// the input stream and written to the output stream share one Format for
// the lifetime of the engine.
type Format struct {
	SampleRate  int // samples per second per channel
	Channels    int // interleaved channel count
	ChunkFrames int // frames per chunk
}

// Validate checks the format for usable values.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}

	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", f.Channels)
	}

	if f.ChunkFrames <= 0 {
		return fmt.Errorf("chunk frames must be positive, got %d", f.ChunkFrames)
	}

	return nil
}

// SamplesPerChunk returns the interleaved sample count of one chunk.
func (f Format) SamplesPerChunk() int {
	return f.ChunkFrames * f.Channels
}

// ChunkDuration returns the wall-clock duration of one chunk.
func (f Format) ChunkDuration() time.Duration {
	return time.Duration(float64(f.ChunkFrames) / float64(f.SampleRate) * float64(time.Second))
}

// ChunksFor returns the number of chunks covering the given duration in
// seconds, rounded up. Used for the record budget and the below-stop
// counter so a configured duration is never undershot.
func (f Format) ChunksFor(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Ceil(seconds * float64(f.SampleRate) / float64(f.ChunkFrames)))
}

// Chunk is one fixed-size block of interleaved 16-bit PCM samples.
// Invariant: len(Samples) == frames * Channels.
type Chunk struct {
	Samples  []int16
	Channels int
}

// Frames returns the per-channel frame count of the chunk.
func (c Chunk) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Clone returns a deep copy of the chunk.
func (c Chunk) Clone() Chunk {
	samples := make([]int16, len(c.Samples))
	copy(samples, c.Samples)
	return Chunk{Samples: samples, Channels: c.Channels}
}

// NewSilence returns a zeroed chunk of the given layout.
func NewSilence(frames, channels int) Chunk {
	return Chunk{
		Samples:  make([]int16, frames*channels),
		Channels: channels,
	}
}

// Concat joins chunks into a single chunk in order. All chunks must share
// the same channel count; the first chunk's layout wins.
func Concat(chunks []Chunk) Chunk {
	if len(chunks) == 0 {
		return Chunk{}
	}
	if len(chunks) == 1 {
		return chunks[0]
	}

	total := 0
	for _, c := range chunks {
		total += len(c.Samples)
	}

	samples := make([]int16, 0, total)
	for _, c := range chunks {
		samples = append(samples, c.Samples...)
	}

	return Chunk{Samples: samples, Channels: chunks[0].Channels}
}

// clampSample converts a float sample to int16 with hard clipping.
func clampSample(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
