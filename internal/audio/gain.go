package audio

import "math"

// ApplyGain scales every sample by the linear equivalent of gainDB and
// clips to the 16-bit range. A gain of 0 dB returns the input chunk
// unchanged without copying.
func ApplyGain(c Chunk, gainDB float64) Chunk {
	if gainDB == 0 {
		return c
	}

	linear := math.Pow(10, gainDB/20)

	out := Chunk{
		Samples:  make([]int16, len(c.Samples)),
		Channels: c.Channels,
	}
	for i, s := range c.Samples {
		out.Samples[i] = clampSample(float64(s) * linear)
	}

	return out
}
