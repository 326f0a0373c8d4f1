package device

import (
	"github.com/steffomix/simplex-audio-repeater/internal/audio"
)

// InputStream delivers captured audio one chunk at a time. ReadChunk
// blocks until a full chunk is available or the stream is closed.
type InputStream interface {
	ReadChunk() (audio.Chunk, error)
	Close() error
}

// OutputStream consumes audio one chunk at a time. WriteChunk blocks
// until the device has accepted the chunk or the stream is closed.
type OutputStream interface {
	WriteChunk(audio.Chunk) error
	Close() error
}
