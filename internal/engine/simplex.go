package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/steffomix/simplex-audio-repeater/internal/archive"
	"github.com/steffomix/simplex-audio-repeater/internal/audio"
	"github.com/steffomix/simplex-audio-repeater/internal/config"
)

// runSimplex is the level-triggered record/replay loop. Exactly one of
// recording and playing is active at any time; between episodes the loop
// idles, optionally feeding delayed live input to the output.
func (e *Engine) runSimplex(ctx context.Context) {
	defer e.wg.Done()

	for ctx.Err() == nil {
		p := e.params.Snapshot()

		chunk, ok := e.readChunk(ctx, p)
		if !ok {
			continue
		}

		e.mu.Lock()
		inDeadTime := time.Now().Before(e.deadTimeEnd)
		e.mu.Unlock()

		if inDeadTime {
			e.setState(StateDeadTime)
			e.writeChunk(ctx, audio.NewSilence(e.format.ChunkFrames, e.outChannels))
			continue
		}

		if e.follower.Level() > float64(p.StartThreshold) {
			capture := e.record(ctx, chunk)
			if len(capture) > 0 && ctx.Err() == nil {
				e.play(ctx, capture)
			}

			p = e.params.Snapshot()
			e.mu.Lock()
			e.deadTimeEnd = time.Now().Add(p.DeadDuration())
			e.mu.Unlock()
			continue
		}

		e.setState(StateIdle)

		if p.MonitorEnabled {
			e.monitor(ctx, chunk, p)
		} else {
			// Keep the output stream clocked while waiting for signal.
			e.writeChunk(ctx, audio.NewSilence(e.format.ChunkFrames, e.outChannels))
		}
	}
}

// monitor feeds delayed live input to the output while idle.
func (e *Engine) monitor(ctx context.Context, chunk audio.Chunk, p config.Params) {
	e.ring.SetTarget(e.targetDepth(p.PlaybackDelayMs))
	e.ring.Push(chunk)

	for _, c := range e.ring.PopExcess() {
		e.writeChunk(ctx, e.processChunk(c, p))
	}

	e.metrics.SetRingDepth(e.ring.Len(), e.ring.Target())
}

// record captures chunks starting with the one that crossed the start
// threshold. Capture ends when the damped level has stayed below the stop
// threshold long enough, when the record budget is exhausted, or when the
// engine stops.
func (e *Engine) record(ctx context.Context, first audio.Chunk) []audio.Chunk {
	e.setState(StateRecording)

	// The monitor path must not replay audio captured before the trigger.
	e.ring.Clear(true, e.format.ChunkFrames, e.format.Channels)

	slog.Info("Recording started", "damped_level", e.follower.Level())

	capture := []audio.Chunk{first}
	below := 0

	for ctx.Err() == nil {
		p := e.params.Snapshot()

		budget := e.format.ChunksFor(p.RecordTime)
		if budget < 1 {
			budget = 1
		}
		stopChunks := e.format.ChunksFor(p.StopTime)
		if stopChunks < 1 {
			stopChunks = 1
		}

		e.setProgress(float64(len(capture)) / float64(budget) * 100)

		if len(capture) >= budget {
			slog.Info("Recording stopped at record budget", "chunks", len(capture))
			break
		}

		chunk, ok := e.readChunk(ctx, p)
		if !ok {
			continue
		}
		capture = append(capture, chunk)

		if e.follower.Level() < float64(p.StopThreshold) {
			below++
			if below >= stopChunks {
				slog.Info("Recording stopped below threshold",
					"chunks", len(capture),
					"below_chunks", below)
				break
			}
		} else {
			below = 0
		}
	}

	return capture
}

// play replays the capture in order through the processing chain, counting
// progress down from full to zero, then hands the episode to the archiver.
func (e *Engine) play(ctx context.Context, capture []audio.Chunk) {
	e.setState(StatePlaying)

	total := len(capture)
	slog.Info("Playback started", "chunks", total)

	for i, c := range capture {
		if ctx.Err() != nil {
			return
		}

		p := e.params.Snapshot()
		e.writeChunk(ctx, e.processChunk(c, p))
		e.setProgress(float64(total-(i+1)) / float64(total) * 100)
	}

	duration := float64(total) * e.format.ChunkDuration().Seconds()

	e.mu.Lock()
	e.episodes++
	e.mu.Unlock()
	e.metrics.RecordEpisode(duration)

	if e.archive != nil {
		joined := audio.Concat(capture)
		e.archive.Submit(archive.Episode{
			Samples:    joined.Samples,
			SampleRate: e.format.SampleRate,
			Channels:   e.format.Channels,
			CapturedAt: time.Now(),
		})
	}

	slog.Info("Playback finished", "chunks", total, "duration_s", duration)
}
