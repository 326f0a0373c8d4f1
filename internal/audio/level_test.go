package audio

import (
	"math"
	"testing"
)

func TestLevelMono(t *testing.T) {
	c := Chunk{Samples: []int16{100, -100, 200, -200}, Channels: 1}

	got := Level(c)
	want := 150.0

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected level %f, got %f", want, got)
	}
}

func TestLevelStereoTakesMaxChannel(t *testing.T) {
	// Signal on the left channel only; the meter must report the loud
	// channel, not the average of both.
	c := Chunk{
		Samples:  []int16{2000, 0, -2000, 0, 2000, 0, -2000, 0},
		Channels: 2,
	}

	got := Level(c)
	want := 2000.0

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected level %f, got %f", want, got)
	}
}

func TestLevelSilence(t *testing.T) {
	c := NewSilence(1024, 1)

	if got := Level(c); got != 0 {
		t.Errorf("Expected zero level for silence, got %f", got)
	}
}

func TestLevelEmptyChunk(t *testing.T) {
	if got := Level(Chunk{}); got != 0 {
		t.Errorf("Expected zero level for empty chunk, got %f", got)
	}
}
