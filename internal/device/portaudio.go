package device

import (
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"

	"github.com/steffomix/simplex-audio-repeater/internal/audio"
)

// Initialize starts the PortAudio runtime. It must be called once before
// any stream is opened, and paired with Terminate on shutdown.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate releases the PortAudio runtime.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// paInput reads int16 frames from a PortAudio input stream.
type paInput struct {
	stream *portaudio.Stream
	buffer []int16
	format audio.Format
}

// paOutput writes int16 frames to a PortAudio output stream.
type paOutput struct {
	stream *portaudio.Stream
	buffer []int16
	format audio.Format
}

// OpenInput opens an input stream on the named device, or the default
// input device when name is empty or the name is not found.
func OpenInput(name string, format audio.Format) (InputStream, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	buffer := make([]int16, format.SamplesPerChunk())

	stream, err := openStream(name, format, buffer, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	return &paInput{stream: stream, buffer: buffer, format: format}, nil
}

// OpenOutput opens an output stream on the named device, or the default
// output device when name is empty or the name is not found.
func OpenOutput(name string, format audio.Format) (OutputStream, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	buffer := make([]int16, format.SamplesPerChunk())

	stream, err := openStream(name, format, buffer, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}

	return &paOutput{stream: stream, buffer: buffer, format: format}, nil
}

func openStream(name string, format audio.Format, buffer []int16, input bool) (*portaudio.Stream, error) {
	dev, err := findDevice(name, input)
	if err != nil {
		return nil, err
	}

	if dev == nil {
		if input {
			return portaudio.OpenDefaultStream(format.Channels, 0,
				float64(format.SampleRate), format.ChunkFrames, buffer)
		}
		return portaudio.OpenDefaultStream(0, format.Channels,
			float64(format.SampleRate), format.ChunkFrames, buffer)
	}

	params := portaudio.StreamParameters{
		SampleRate:      float64(format.SampleRate),
		FramesPerBuffer: format.ChunkFrames,
	}
	if input {
		params.Input = portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: format.Channels,
			Latency:  dev.DefaultLowInputLatency,
		}
	} else {
		params.Output = portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: format.Channels,
			Latency:  dev.DefaultLowOutputLatency,
		}
	}

	return portaudio.OpenStream(params, buffer)
}

// findDevice resolves a device name to its DeviceInfo. A nil result with
// a nil error means the default device should be used.
func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" || name == "default" {
		return nil, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	for _, dev := range devices {
		if dev.Name != name {
			continue
		}
		if input && dev.MaxInputChannels > 0 {
			return dev, nil
		}
		if !input && dev.MaxOutputChannels > 0 {
			return dev, nil
		}
	}

	slog.Warn("Audio device not found, falling back to default",
		"device", name,
		"direction", direction(input))
	return nil, nil
}

func direction(input bool) string {
	if input {
		return "input"
	}
	return "output"
}

// ReadChunk blocks until a full chunk has been captured. Input overflow
// is not fatal; the stream keeps running and the partially stale chunk
// is returned as-is.
func (s *paInput) ReadChunk() (audio.Chunk, error) {
	if err := s.stream.Read(); err != nil {
		if err == portaudio.InputOverflowed {
			slog.Debug("Input overflow, chunk may contain stale samples")
		} else {
			return audio.Chunk{}, fmt.Errorf("failed to read from input stream: %w", err)
		}
	}

	samples := make([]int16, len(s.buffer))
	copy(samples, s.buffer)

	return audio.Chunk{Samples: samples, Channels: s.format.Channels}, nil
}

// Close aborts the stream so a blocked ReadChunk returns, then closes it.
func (s *paInput) Close() error {
	if err := s.stream.Abort(); err != nil {
		slog.Warn("Failed to abort input stream", "error", err)
	}
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("failed to close input stream: %w", err)
	}
	return nil
}

// WriteChunk blocks until the device has accepted the chunk. Output
// underflow is not fatal.
func (s *paOutput) WriteChunk(c audio.Chunk) error {
	if len(c.Samples) != len(s.buffer) {
		return fmt.Errorf("chunk size mismatch: got %d samples, want %d",
			len(c.Samples), len(s.buffer))
	}

	copy(s.buffer, c.Samples)

	if err := s.stream.Write(); err != nil {
		if err == portaudio.OutputUnderflowed {
			slog.Debug("Output underflow")
			return nil
		}
		return fmt.Errorf("failed to write to output stream: %w", err)
	}
	return nil
}

// Close aborts the stream so a blocked WriteChunk returns, then closes it.
func (s *paOutput) Close() error {
	if err := s.stream.Abort(); err != nil {
		slog.Warn("Failed to abort output stream", "error", err)
	}
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("failed to close output stream: %w", err)
	}
	return nil
}
