package audio

// Level computes the instantaneous level of a chunk: the mean absolute
// sample value per channel, then the maximum across channels. Taking the
// maximum rather than the average keeps a signal present in only one
// channel above the trigger threshold.
func Level(c Chunk) float64 {
	frames := c.Frames()
	if frames == 0 {
		return 0
	}

	level := 0.0
	for ch := 0; ch < c.Channels; ch++ {
		sum := 0.0
		for i := ch; i < len(c.Samples); i += c.Channels {
			s := float64(c.Samples[i])
			if s < 0 {
				s = -s
			}
			sum += s
		}

		mean := sum / float64(frames)
		if mean > level {
			level = mean
		}
	}

	return level
}
