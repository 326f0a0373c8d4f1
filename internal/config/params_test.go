package config

import (
	"sync"
	"testing"
)

func TestStoreSnapshot(t *testing.T) {
	s := NewStore(Default().Params)

	p := s.Snapshot()
	if p.StartThreshold != 1000 {
		t.Errorf("Expected start threshold 1000, got %d", p.StartThreshold)
	}
}

func TestStoreUpdate(t *testing.T) {
	s := NewStore(Default().Params)

	s.Update(func(p *Params) {
		p.GainDB = -6
		p.EQEnabled = true
	})

	p := s.Snapshot()
	if p.GainDB != -6 {
		t.Errorf("Expected gain -6 dB, got %f", p.GainDB)
	}
	if !p.EQEnabled {
		t.Error("Expected EQ enabled")
	}
}

func TestThresholdOrderingHeldOnEveryWrite(t *testing.T) {
	s := NewStore(Default().Params)

	// Raising stop above start drags it back down.
	p := s.Update(func(p *Params) { p.StopThreshold = 5000 })
	if p.StopThreshold > p.StartThreshold {
		t.Errorf("stop_threshold %d exceeds start_threshold %d", p.StopThreshold, p.StartThreshold)
	}

	// Lowering start below stop drags stop down with it.
	s.Update(func(p *Params) { p.StopThreshold = 800 })
	p = s.Update(func(p *Params) { p.StartThreshold = 500 })
	if p.StopThreshold > p.StartThreshold {
		t.Errorf("stop_threshold %d exceeds start_threshold %d", p.StopThreshold, p.StartThreshold)
	}
}

func TestStoreClampsRanges(t *testing.T) {
	s := NewStore(Default().Params)

	p := s.Update(func(p *Params) {
		p.StartThreshold = 99999
		p.RiseTimeMs = -5
		p.DeadTime = -1
		p.EQGains = []float64{100, -100}
	})

	if p.StartThreshold != maxThreshold {
		t.Errorf("Expected start threshold clamped to %d, got %d", maxThreshold, p.StartThreshold)
	}
	if p.RiseTimeMs != 0 {
		t.Errorf("Expected rise time clamped to 0, got %f", p.RiseTimeMs)
	}
	if p.DeadTime != 0 {
		t.Errorf("Expected dead time clamped to 0, got %f", p.DeadTime)
	}
	if p.EQGains[0] != 24 || p.EQGains[1] != -24 {
		t.Errorf("Expected EQ gains clamped to [24, -24], got %v", p.EQGains)
	}
}

func TestUpdateDoesNotMutateOldSnapshots(t *testing.T) {
	s := NewStore(Default().Params)
	s.Update(func(p *Params) { p.EQGains = []float64{1, 2, 3} })

	before := s.Snapshot()
	s.Update(func(p *Params) { p.EQGains[0] = 9 })

	if before.EQGains[0] != 1 {
		t.Errorf("Old snapshot was mutated: %v", before.EQGains)
	}
}

func TestStoreConcurrentReaders(t *testing.T) {
	s := NewStore(Default().Params)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				p := s.Snapshot()
				if p.StopThreshold > p.StartThreshold {
					t.Error("Observed snapshot violating threshold ordering")
					return
				}
			}
		}()
	}

	for j := 0; j < 1000; j++ {
		s.Update(func(p *Params) {
			p.StartThreshold = j % maxThreshold
			p.StopThreshold = (j * 7) % maxThreshold
		})
	}

	wg.Wait()
}
