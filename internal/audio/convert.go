package audio

// ConvertChannels re-lays a chunk into the requested channel count.
// Identity conversions return the input unchanged. Stereo to mono averages
// the two channels per frame; mono to stereo duplicates the channel.
func ConvertChannels(c Chunk, toChannels int) Chunk {
	if c.Channels == toChannels {
		return c
	}

	frames := c.Frames()
	out := Chunk{
		Samples:  make([]int16, frames*toChannels),
		Channels: toChannels,
	}

	switch {
	case c.Channels == 2 && toChannels == 1:
		for i := 0; i < frames; i++ {
			l := int32(c.Samples[i*2])
			r := int32(c.Samples[i*2+1])
			out.Samples[i] = int16((l + r) / 2)
		}

	case c.Channels == 1 && toChannels == 2:
		for i := 0; i < frames; i++ {
			out.Samples[i*2] = c.Samples[i]
			out.Samples[i*2+1] = c.Samples[i]
		}

	default:
		// Unsupported layouts pass through untouched; Format.Validate
		// restricts the session to mono and stereo.
		return c
	}

	return out
}
