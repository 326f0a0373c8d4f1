package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/steffomix/simplex-audio-repeater/internal/audio"
	"github.com/steffomix/simplex-audio-repeater/internal/metrics"
)

// Episode is one finished capture handed off for archiving.
type Episode struct {
	Samples    []int16
	SampleRate int
	Channels   int
	CapturedAt time.Time
}

// Writer archives episodes to a directory. Submit never blocks; episodes
// are dropped when the queue is full.
type Writer struct {
	directory string
	queue     chan Episode
	metrics   *metrics.Metrics

	wg sync.WaitGroup

	mu      sync.Mutex
	written uint64
	dropped uint64
	errors  uint64
}

// Stats contains archive writer statistics.
type Stats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Errors  uint64 `json:"errors"`
}

// NewWriter creates the archive directory if needed and starts the
// background worker.
func NewWriter(directory string, queueSize int, m *metrics.Metrics) (*Writer, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", directory, err)
	}

	if queueSize < 1 {
		queueSize = 1
	}

	w := &Writer{
		directory: directory,
		queue:     make(chan Episode, queueSize),
		metrics:   m,
	}

	w.wg.Add(1)
	go w.run()

	slog.Info("Archive writer started", "directory", directory, "queue_size", queueSize)
	return w, nil
}

// Submit queues an episode for archiving. It returns false and drops the
// episode when the queue is full.
func (w *Writer) Submit(ep Episode) bool {
	select {
	case w.queue <- ep:
		return true
	default:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		w.metrics.RecordArchiveDropped()

		slog.Warn("Archive queue full, dropping episode",
			"samples", len(ep.Samples))
		return false
	}
}

// Stop closes the queue and waits for queued episodes to be written.
func (w *Writer) Stop() {
	close(w.queue)
	w.wg.Wait()
	slog.Info("Archive writer stopped")
}

// Stats returns a snapshot of the writer statistics.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{Written: w.written, Dropped: w.dropped, Errors: w.errors}
}

func (w *Writer) run() {
	defer w.wg.Done()

	for ep := range w.queue {
		if err := w.write(ep); err != nil {
			w.mu.Lock()
			w.errors++
			w.mu.Unlock()

			slog.Error("Failed to archive episode", "error", err)
			continue
		}

		w.mu.Lock()
		w.written++
		w.mu.Unlock()
		w.metrics.RecordArchiveWritten()
	}
}

func (w *Writer) write(ep Episode) error {
	data, err := audio.EncodeWAV(ep.Samples, ep.SampleRate, ep.Channels)
	if err != nil {
		return fmt.Errorf("failed to encode WAV: %w", err)
	}

	name := fmt.Sprintf("capture_%s.wav", ep.CapturedAt.Format("20060102_150405.000"))
	path := filepath.Join(w.directory, name)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	slog.Debug("Archived episode", "file", name, "samples", len(ep.Samples))
	return nil
}
