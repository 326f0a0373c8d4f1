package audio

import "testing"

func TestEncodeDecodeWAV(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768, 500}

	data, err := EncodeWAV(samples, 44100, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(data) != 44+len(samples)*2 {
		t.Errorf("Expected %d bytes, got %d", 44+len(samples)*2, len(data))
	}

	decoded, rate, channels, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if rate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", rate)
	}
	if channels != 1 {
		t.Errorf("Expected 1 channel, got %d", channels)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}
	for i, s := range samples {
		if decoded[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, decoded[i])
		}
	}
}

func TestEncodeWAVStereo(t *testing.T) {
	samples := []int16{1, 2, 3, 4}

	data, err := EncodeWAV(samples, 48000, 2)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	_, rate, channels, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if rate != 48000 || channels != 2 {
		t.Errorf("Expected 48000 Hz stereo, got %d Hz %d channels", rate, channels)
	}
}

func TestEncodeWAVValidation(t *testing.T) {
	tests := []struct {
		name       string
		samples    []int16
		sampleRate int
		channels   int
	}{
		{"empty samples", nil, 44100, 1},
		{"zero sample rate", []int16{1}, 0, 1},
		{"bad channels", []int16{1}, 44100, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeWAV(tt.samples, tt.sampleRate, tt.channels); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestDecodeWAVInvalid(t *testing.T) {
	if _, _, _, err := DecodeWAV([]byte("not a wav file")); err == nil {
		t.Error("Expected error for short data, got nil")
	}

	data, _ := EncodeWAV([]int16{1, 2, 3}, 8000, 1)
	data[0] = 'X' // corrupt the RIFF magic
	if _, _, _, err := DecodeWAV(data); err == nil {
		t.Error("Expected error for corrupted header, got nil")
	}
}
