package engine

import (
	"context"
	"time"

	"github.com/steffomix/simplex-audio-repeater/internal/audio"
)

// runProducer reads input chunks into the delay ring. When occupancy is
// above target it pauses for a fraction of a chunk before pushing, which
// bounds the worst-case extra latency instead of letting the ring grow.
func (e *Engine) runProducer(ctx context.Context) {
	defer e.wg.Done()

	waitStep := e.format.ChunkDuration() / 4

	for ctx.Err() == nil {
		p := e.params.Snapshot()

		target := e.targetDepth(p.PlaybackDelayMs)
		e.ring.SetTarget(target)

		if e.ring.Len() > target {
			time.Sleep(waitStep)
		}

		chunk, ok := e.readChunk(ctx, p)
		if !ok {
			continue
		}

		e.ring.Push(chunk)
		e.metrics.SetRingDepth(e.ring.Len(), target)
	}
}

// runConsumer drains the delay ring back down to target depth. The chunks
// above target are concatenated, processed as one unit, and written out in
// chunk-size slices so the ring's occupancy oscillates around target and
// end-to-end latency stays constant.
func (e *Engine) runConsumer(ctx context.Context) {
	defer e.wg.Done()

	waitStep := e.format.ChunkDuration() / 4

	for ctx.Err() == nil {
		chunks := e.ring.PopExcess()
		if len(chunks) == 0 {
			time.Sleep(waitStep)
			continue
		}

		p := e.params.Snapshot()
		unit := e.processChunk(audio.Concat(chunks), p)

		step := e.format.ChunkFrames * e.outChannels
		for off := 0; off+step <= len(unit.Samples); off += step {
			if ctx.Err() != nil {
				return
			}
			e.writeChunk(ctx, audio.Chunk{
				Samples:  unit.Samples[off : off+step],
				Channels: e.outChannels,
			})
		}

		e.metrics.SetRingDepth(e.ring.Len(), e.ring.Target())
	}
}
