package config

import (
	"sync"
	"sync/atomic"
)

// Store holds the live parameter set as an atomic snapshot. The control
// API is the single writer; the processing goroutines read one immutable
// snapshot per loop iteration and never observe a half-applied update.
type Store struct {
	writeMu sync.Mutex
	current atomic.Pointer[Params]
}

// NewStore creates a store seeded with normalized parameters.
func NewStore(p Params) *Store {
	s := &Store{}
	normalize(&p)
	s.current.Store(&p)
	return s
}

// Snapshot returns the current parameter set by value.
func (s *Store) Snapshot() Params {
	return *s.current.Load()
}

// Update applies mutate to a copy of the current parameters, normalizes
// the result, and publishes it atomically. The normalized result is
// returned.
func (s *Store) Update(mutate func(*Params)) Params {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	p := *s.current.Load()
	if p.EQGains != nil {
		gains := make([]float64, len(p.EQGains))
		copy(gains, p.EQGains)
		p.EQGains = gains
	}

	mutate(&p)
	normalize(&p)

	s.current.Store(&p)
	return p
}

// normalize clamps parameters into their legal ranges. The stop threshold
// is dragged down whenever it would exceed the start threshold, so the
// invariant stop_threshold <= start_threshold holds after every write.
func normalize(p *Params) {
	if p.StartThreshold < 0 {
		p.StartThreshold = 0
	}
	if p.StartThreshold > maxThreshold {
		p.StartThreshold = maxThreshold
	}

	if p.StopThreshold < 0 {
		p.StopThreshold = 0
	}
	if p.StopThreshold > p.StartThreshold {
		p.StopThreshold = p.StartThreshold
	}

	if p.RiseTimeMs < 0 {
		p.RiseTimeMs = 0
	}
	if p.FallTimeMs < 0 {
		p.FallTimeMs = 0
	}

	if p.RecordTime < 0 {
		p.RecordTime = 0
	}
	if p.StopTime < 0 {
		p.StopTime = 0
	}
	if p.DeadTime < 0 {
		p.DeadTime = 0
	}
	if p.PlaybackDelayMs < 0 {
		p.PlaybackDelayMs = 0
	}

	for i, g := range p.EQGains {
		if g < -24 {
			p.EQGains[i] = -24
		} else if g > 24 {
			p.EQGains[i] = 24
		}
	}
}
