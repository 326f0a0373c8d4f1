package eq

import (
	"fmt"
	"math"
	"sync"

	"github.com/steffomix/simplex-audio-repeater/internal/audio"
	"github.com/steffomix/simplex-audio-repeater/internal/metrics"
)

const (
	// bandQ gives roughly one octave of bandwidth per band.
	bandQ = 1.41

	// nyquistGuard bypasses bands whose centre sits too close to the
	// Nyquist frequency to yield a usable filter.
	nyquistGuard = 0.95

	// limiterHeadroom is the peak the soft limiter scales down to before
	// hard clipping, leaving a little room below full scale.
	limiterHeadroom = 32000.0
)

// DefaultCenters are the ten octave-spaced band centres of a classic
// graphic equalizer.
var DefaultCenters = []float64{31.25, 62.5, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}

// band holds one peaking filter: its parameters, normalized biquad
// coefficients (a0 = 1), and a two-element state vector per channel.
type band struct {
	center float64
	gainDB float64
	bypass bool

	b0, b1, b2 float64
	a1, a2     float64

	state [][2]float64 // one per channel
}

// Bank is a cascade of peaking filters applied chunk by chunk. State
// persists across chunks so filtering is continuous at chunk boundaries.
type Bank struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	bands      []band
	metrics    *metrics.Metrics

	chunksFiltered uint64
	chunksBypassed uint64
	bandFaults     uint64
	chunkResets    uint64
}

// Stats is a snapshot of bank counters for monitoring.
type Stats struct {
	ChunksFiltered uint64 `json:"chunks_filtered"`
	ChunksBypassed uint64 `json:"chunks_bypassed"`
	BandFaults     uint64 `json:"band_faults"`
	ChunkResets    uint64 `json:"chunk_resets"`
}

// NewBank creates a bank with the given band centres, all at 0 dB. State
// for every (band, channel) pair is allocated up front from the known
// channel count.
func NewBank(sampleRate, channels int, centers []float64, m *metrics.Metrics) (*Bank, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("channels must be 1 or 2, got %d", channels)
	}

	if len(centers) == 0 {
		return nil, fmt.Errorf("at least one band centre is required")
	}

	b := &Bank{
		sampleRate: sampleRate,
		channels:   channels,
		bands:      make([]band, len(centers)),
		metrics:    m,
	}

	for i, center := range centers {
		b.bands[i] = band{
			center: center,
			state:  make([][2]float64, channels),
		}
		b.bands[i].recompute(sampleRate)
	}

	return b, nil
}

// Centers returns the band centre frequencies in Hz.
func (b *Bank) Centers() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]float64, len(b.bands))
	for i := range b.bands {
		out[i] = b.bands[i].center
	}
	return out
}

// Gains returns the current per-band gains in dB.
func (b *Bank) Gains() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]float64, len(b.bands))
	for i := range b.bands {
		out[i] = b.bands[i].gainDB
	}
	return out
}

// SetGains updates the per-band gains in dB, recomputing coefficients for
// bands whose gain changed. Extra values are ignored; missing values leave
// the band untouched.
func (b *Bank) SetGains(gains []float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.bands {
		if i >= len(gains) {
			break
		}
		if b.bands[i].gainDB == gains[i] {
			continue
		}
		b.bands[i].gainDB = gains[i]
		b.bands[i].recompute(b.sampleRate)

		// A band rejected for anything other than its centre frequency
		// means the derivation itself failed for these parameters.
		nyquist := float64(b.sampleRate) / 2
		if b.bands[i].bypass && b.bands[i].center > 0 && b.bands[i].center < nyquistGuard*nyquist {
			b.bandFaults++
			b.metrics.RecordEQBandFault()
		}
	}
}

// Reset zeroes all filter state.
func (b *Bank) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.bands {
		for ch := range b.bands[i].state {
			b.bands[i].state[ch] = [2]float64{}
		}
	}
}

// Apply runs the chunk through the cascade and returns a soft-limited
// chunk of the same length and channel layout. With every band at 0 dB
// the input is returned unchanged.
func (b *Bank) Apply(c audio.Chunk) audio.Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.Channels != b.channels || len(c.Samples) == 0 {
		return c
	}

	active := false
	for i := range b.bands {
		if b.bands[i].gainDB != 0 && !b.bands[i].bypass {
			active = true
			break
		}
	}
	if !active {
		b.chunksBypassed++
		return c
	}

	frames := c.Frames()

	buf := make([]float64, len(c.Samples))
	for i, s := range c.Samples {
		buf[i] = float64(s)
	}

	prev := make([]float64, len(buf))
	for i := range b.bands {
		bd := &b.bands[i]
		if bd.bypass || bd.gainDB == 0 {
			continue
		}

		copy(prev, buf)
		for ch := 0; ch < b.channels; ch++ {
			bd.filterChannel(buf, ch, b.channels, frames)
		}

		if !finite(buf) {
			// Discard this band's result and recover with a clean state.
			copy(buf, prev)
			for ch := range bd.state {
				bd.state[ch] = [2]float64{}
			}
			b.chunkResets++
			b.metrics.RecordEQChunkReset()
		}
	}

	b.chunksFiltered++

	return softLimit(buf, c.Channels)
}

// Stats returns a snapshot of the bank counters.
func (b *Bank) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		ChunksFiltered: b.chunksFiltered,
		ChunksBypassed: b.chunksBypassed,
		BandFaults:     b.bandFaults,
		ChunkResets:    b.chunkResets,
	}
}

// filterChannel runs the transposed direct-form-II biquad over one
// channel of the interleaved buffer.
func (bd *band) filterChannel(buf []float64, ch, channels, frames int) {
	s := &bd.state[ch]
	s0, s1 := s[0], s[1]

	for i := 0; i < frames; i++ {
		idx := i*channels + ch
		x := buf[idx]
		y := bd.b0*x + s0
		s0 = bd.b1*x - bd.a1*y + s1
		s1 = bd.b2*x - bd.a2*y
		buf[idx] = y
	}

	s[0], s[1] = s0, s1
}

// recompute derives the peaking-EQ coefficients from the band parameters
// using the audio-EQ cookbook formulas. Invalid or unstable results put
// the band in bypass and zero its state.
func (bd *band) recompute(sampleRate int) {
	nyquist := float64(sampleRate) / 2

	if bd.center <= 0 || bd.center >= nyquistGuard*nyquist {
		bd.setBypass()
		return
	}

	a := math.Pow(10, bd.gainDB/40)
	w0 := 2 * math.Pi * bd.center / float64(sampleRate)
	alpha := math.Sin(w0) / (2 * bandQ)
	cosw0 := math.Cos(w0)

	a0 := 1 + alpha/a
	b0 := (1 + alpha*a) / a0
	b1 := (-2 * cosw0) / a0
	b2 := (1 - alpha*a) / a0
	a1 := (-2 * cosw0) / a0
	a2 := (1 - alpha/a) / a0

	for _, v := range []float64{b0, b1, b2, a1, a2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			bd.setBypass()
			return
		}
	}

	// Poles outside the unit circle make the recursion diverge.
	if math.Abs(a1)/2 >= 1 || math.Abs(a2) >= 1 {
		bd.setBypass()
		return
	}

	bd.b0, bd.b1, bd.b2 = b0, b1, b2
	bd.a1, bd.a2 = a1, a2
	bd.bypass = false
}

// setBypass installs identity coefficients and clears state.
func (bd *band) setBypass() {
	bd.b0, bd.b1, bd.b2 = 1, 0, 0
	bd.a1, bd.a2 = 0, 0
	bd.bypass = true
	for ch := range bd.state {
		bd.state[ch] = [2]float64{}
	}
}

// finite reports whether every value in buf is a normal number.
func finite(buf []float64) bool {
	for _, v := range buf {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// softLimit converts the float buffer back to int16. If the peak exceeds
// the 16-bit range the whole chunk is scaled down to headroom first so a
// hot filter output ducks instead of square-clipping.
func softLimit(buf []float64, channels int) audio.Chunk {
	peak := 0.0
	for _, v := range buf {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	scale := 1.0
	if peak > math.MaxInt16 {
		scale = limiterHeadroom / peak
	}

	out := audio.Chunk{
		Samples:  make([]int16, len(buf)),
		Channels: channels,
	}
	for i, v := range buf {
		out.Samples[i] = clampSample(v * scale)
	}

	return out
}

func clampSample(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
