package envelope

import "time"

const (
	// minElapsedMs guards against non-positive elapsed time from clock
	// adjustments or back-to-back updates.
	minElapsedMs = 0.001

	// maxElapsedMs caps the step after a scheduling stall so one late
	// update cannot act like many.
	maxElapsedMs = 1000.0
)

// Follower converts raw chunk levels into a damped level. It is owned by
// the processing goroutine and is not safe for concurrent use; readers get
// the damped value through the engine's status snapshot.
type Follower struct {
	damped     float64
	lastUpdate time.Time
}

// New returns a follower starting at level zero.
func New() *Follower {
	return &Follower{}
}

// Update advances the damped level toward raw using wall-clock elapsed
// time since the previous call.
func (f *Follower) Update(raw, attackMs, releaseMs float64) float64 {
	return f.UpdateAt(raw, attackMs, releaseMs, time.Now())
}

// UpdateAt is Update with an explicit clock, used by tests.
//
// For a nonzero time constant tau the step is bounded by
// (target-current) * elapsed/tau and the result never crosses the target.
// A zero time constant snaps immediately.
func (f *Follower) UpdateAt(raw, attackMs, releaseMs float64, now time.Time) float64 {
	elapsedMs := 0.0
	if !f.lastUpdate.IsZero() {
		elapsedMs = float64(now.Sub(f.lastUpdate)) / float64(time.Millisecond)
	}
	f.lastUpdate = now

	if elapsedMs < minElapsedMs {
		elapsedMs = minElapsedMs
	} else if elapsedMs > maxElapsedMs {
		elapsedMs = maxElapsedMs
	}

	if raw > f.damped {
		if attackMs <= 0 {
			f.damped = raw
		} else {
			step := (raw - f.damped) * (elapsedMs / attackMs)
			f.damped = min(f.damped+step, raw)
		}
	} else {
		if releaseMs <= 0 {
			f.damped = raw
		} else {
			step := (f.damped - raw) * (elapsedMs / releaseMs)
			f.damped = max(f.damped-step, raw)
		}
	}

	return f.damped
}

// Level returns the current damped level without advancing it.
func (f *Follower) Level() float64 {
	return f.damped
}

// Reset clears the follower back to silence.
func (f *Follower) Reset() {
	f.damped = 0
	f.lastUpdate = time.Time{}
}
