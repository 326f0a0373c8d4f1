package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/steffomix/simplex-audio-repeater/internal/audio"
	"github.com/steffomix/simplex-audio-repeater/internal/config"
	"github.com/steffomix/simplex-audio-repeater/internal/eq"
)

// fakeInput replays a scripted sequence of chunks, then repeats fill.
type fakeInput struct {
	mu     sync.Mutex
	script []audio.Chunk
	idx    int
	fill   audio.Chunk
	delay  time.Duration
	closed bool
}

func (f *fakeInput) ReadChunk() (audio.Chunk, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return audio.Chunk{}, errors.New("input stream closed")
	}
	if f.idx < len(f.script) {
		c := f.script[f.idx]
		f.idx++
		return c.Clone(), nil
	}
	return f.fill.Clone(), nil
}

func (f *fakeInput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// blockingInput blocks in ReadChunk until closed.
type blockingInput struct {
	once   sync.Once
	closed chan struct{}
}

func newBlockingInput() *blockingInput {
	return &blockingInput{closed: make(chan struct{})}
}

func (f *blockingInput) ReadChunk() (audio.Chunk, error) {
	<-f.closed
	return audio.Chunk{}, errors.New("input stream closed")
}

func (f *blockingInput) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// fakeOutput records every written chunk.
type fakeOutput struct {
	mu      sync.Mutex
	written []audio.Chunk
	delay   time.Duration
	closed  bool
}

func (f *fakeOutput) WriteChunk(c audio.Chunk) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errors.New("output stream closed")
	}
	f.written = append(f.written, c.Clone())
	return nil
}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeOutput) chunks() []audio.Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]audio.Chunk, len(f.written))
	copy(out, f.written)
	return out
}

func constantChunk(format audio.Format, value int16) audio.Chunk {
	c := audio.NewSilence(format.ChunkFrames, format.Channels)
	for i := range c.Samples {
		c.Samples[i] = value
	}
	return c
}

func silent(c audio.Chunk) bool {
	for _, s := range c.Samples {
		if s != 0 {
			return false
		}
	}
	return true
}

// triggerParams are the simplex settings of the canonical trigger
// scenario: instant envelope, 0.5s stop window, generous record budget.
func triggerParams() config.Params {
	p := config.Default().Params
	p.RiseTimeMs = 0
	p.FallTimeMs = 0
	p.StartThreshold = 1000
	p.StopThreshold = 100
	p.StopTime = 0.5
	p.RecordTime = 30
	p.DeadTime = 0.05
	return p
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func TestSimplexSingleEpisode(t *testing.T) {
	format := audio.Format{SampleRate: 44100, Channels: 1, ChunkFrames: 1024}

	// Silence, one second of constant signal at 2000, then silence again.
	var script []audio.Chunk
	for i := 0; i < 5; i++ {
		script = append(script, audio.NewSilence(format.ChunkFrames, 1))
	}
	loud := format.ChunksFor(1.0)
	for i := 0; i < loud; i++ {
		script = append(script, constantChunk(format, 2000))
	}

	in := &fakeInput{
		script: script,
		fill:   audio.NewSilence(format.ChunkFrames, 1),
		delay:  100 * time.Microsecond,
	}
	out := &fakeOutput{}

	store := config.NewStore(triggerParams())
	e, err := New(format, 1, store, in, out, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !waitFor(t, 5*time.Second, func() bool { return e.Status().Episodes == 1 }) {
		e.Stop()
		t.Fatal("Expected one episode, engine never completed it")
	}

	// Give the engine time to prove there is no second trigger.
	time.Sleep(50 * time.Millisecond)
	e.Stop()

	status := e.Status()
	if status.Episodes != 1 {
		t.Fatalf("Expected exactly 1 episode, got %d", status.Episodes)
	}

	// Every signal chunk came back out, in order and unmodified; the
	// idle keep-alive writes are silence.
	var signal []audio.Chunk
	for _, c := range out.chunks() {
		if !silent(c) {
			signal = append(signal, c)
		}
	}
	if len(signal) != loud {
		t.Fatalf("Expected %d signal chunks played back, got %d", loud, len(signal))
	}
	for i, c := range signal {
		for _, s := range c.Samples {
			if s != 2000 {
				t.Fatalf("Playback chunk %d modified: got sample %d, want 2000", i, s)
			}
		}
	}
}

func TestSimplexRecordBudget(t *testing.T) {
	format := audio.Format{SampleRate: 44100, Channels: 1, ChunkFrames: 1024}

	p := triggerParams()
	p.RecordTime = 0.1 // budget of ceil(0.1 * 43.07) = 5 chunks
	p.DeadTime = 10
	store := config.NewStore(p)

	in := &fakeInput{fill: constantChunk(format, 2000), delay: 100 * time.Microsecond}
	out := &fakeOutput{}

	e, err := New(format, 1, store, in, out, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !waitFor(t, 5*time.Second, func() bool { return e.Status().Episodes == 1 }) {
		e.Stop()
		t.Fatal("Expected one episode, engine never completed it")
	}
	e.Stop()

	budget := format.ChunksFor(0.1)
	played := 0
	for _, c := range out.chunks() {
		if !silent(c) {
			played++
		}
	}
	if played != budget {
		t.Errorf("Expected record budget of %d chunks played back, got %d", budget, played)
	}
}

func TestSimplexDeadTimeBlocksRetrigger(t *testing.T) {
	format := audio.Format{SampleRate: 44100, Channels: 1, ChunkFrames: 1024}

	p := triggerParams()
	p.RecordTime = 0.1
	p.DeadTime = 10
	store := config.NewStore(p)

	// Permanently loud input: without dead time this would retrigger
	// immediately after playback.
	in := &fakeInput{fill: constantChunk(format, 2000), delay: 100 * time.Microsecond}
	out := &fakeOutput{}

	e, err := New(format, 1, store, in, out, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !waitFor(t, 5*time.Second, func() bool { return e.Status().Episodes == 1 }) {
		e.Stop()
		t.Fatal("Expected one episode, engine never completed it")
	}

	time.Sleep(50 * time.Millisecond)
	status := e.Status()
	e.Stop()

	if status.Episodes != 1 {
		t.Errorf("Expected dead time to block a second episode, got %d", status.Episodes)
	}
	if status.State != "dead_time" {
		t.Errorf("Expected dead_time state, got %s", status.State)
	}
	if status.DeadTimeRemaining <= 0 || status.DeadTimeRemaining > 10 {
		t.Errorf("Expected dead time remaining in (0, 10], got %f", status.DeadTimeRemaining)
	}
}

func TestSimplexPlaybackProgressCountsDown(t *testing.T) {
	format := audio.Format{SampleRate: 44100, Channels: 1, ChunkFrames: 1024}

	p := triggerParams()
	p.RecordTime = 0.5
	p.DeadTime = 10
	store := config.NewStore(p)

	in := &fakeInput{fill: constantChunk(format, 2000), delay: 100 * time.Microsecond}
	out := &fakeOutput{delay: time.Millisecond}

	e, err := New(format, 1, store, in, out, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var samples []float64
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status := e.Status()
		if status.Episodes == 1 {
			break
		}
		if status.State == "playing" {
			samples = append(samples, status.Progress)
		}
		time.Sleep(200 * time.Microsecond)
	}
	e.Stop()

	if len(samples) < 2 {
		t.Skipf("Too few playback samples observed (%d)", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i] > samples[i-1] {
			t.Fatalf("Progress increased during playback: %f -> %f", samples[i-1], samples[i])
		}
	}
}

func TestDuplexConvergesToTarget(t *testing.T) {
	format := audio.Format{SampleRate: 8000, Channels: 1, ChunkFrames: 64}

	p := config.Default().Params
	p.Mode = config.ModeDuplex
	p.PlaybackDelayMs = 40 // target max(2, round(0.04*8000/64)) = 5
	store := config.NewStore(p)

	in := &fakeInput{fill: constantChunk(format, 500), delay: 2 * time.Millisecond}
	out := &fakeOutput{}

	e, err := New(format, 1, store, in, out, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer e.Stop()

	time.Sleep(200 * time.Millisecond)
	status := e.Status()
	if status.RingTarget != 5 {
		t.Errorf("Expected ring target 5, got %d", status.RingTarget)
	}
	if status.RingOccupancy < 2 || status.RingOccupancy > 8 {
		t.Errorf("Expected occupancy near target 5, got %d", status.RingOccupancy)
	}
	if status.ChunksWritten == 0 {
		t.Error("Expected chunks written in duplex mode")
	}

	// Raising the delay grows the ring toward the new target.
	store.Update(func(p *config.Params) { p.PlaybackDelayMs = 80 })
	time.Sleep(300 * time.Millisecond)

	status = e.Status()
	if status.RingTarget != 10 {
		t.Errorf("Expected ring target 10 after delay change, got %d", status.RingTarget)
	}
	if status.RingOccupancy < 8 || status.RingOccupancy > 13 {
		t.Errorf("Expected occupancy to converge near 10, got %d", status.RingOccupancy)
	}

	// Lowering the delay drains the ring back down.
	store.Update(func(p *config.Params) { p.PlaybackDelayMs = 16 })
	time.Sleep(300 * time.Millisecond)

	status = e.Status()
	if status.RingOccupancy > 5 {
		t.Errorf("Expected occupancy to drain toward 2, got %d", status.RingOccupancy)
	}
}

func TestDuplexPreservesOrder(t *testing.T) {
	format := audio.Format{SampleRate: 8000, Channels: 1, ChunkFrames: 64}

	p := config.Default().Params
	p.Mode = config.ModeDuplex
	p.PlaybackDelayMs = 16
	store := config.NewStore(p)

	var script []audio.Chunk
	for i := int16(1); i <= 30; i++ {
		script = append(script, constantChunk(format, i))
	}

	in := &fakeInput{
		script: script,
		fill:   audio.NewSilence(format.ChunkFrames, 1),
		delay:  time.Millisecond,
	}
	out := &fakeOutput{}

	e, err := New(format, 1, store, in, out, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		markers := 0
		for _, c := range out.chunks() {
			if !silent(c) {
				markers++
			}
		}
		return markers >= 30
	})
	e.Stop()

	last := int16(0)
	for _, c := range out.chunks() {
		for _, s := range c.Samples {
			if s == 0 || s == last {
				continue
			}
			if s != last+1 {
				t.Fatalf("Chunks reordered: marker %d followed %d", s, last)
			}
			last = s
		}
	}
	if last != 30 {
		t.Errorf("Expected all 30 markers written, last seen was %d", last)
	}
}

func TestStopUnblocksBlockedRead(t *testing.T) {
	format := audio.Format{SampleRate: 44100, Channels: 1, ChunkFrames: 1024}

	in := newBlockingInput()
	out := &fakeOutput{}
	store := config.NewStore(config.Default().Params)

	e, err := New(format, 1, store, in, out, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not unblock the in-flight read")
	}

	if e.Running() {
		t.Error("Engine still reports running after Stop")
	}
}

func TestStatusReportsBandCenters(t *testing.T) {
	format := audio.Format{SampleRate: 44100, Channels: 1, ChunkFrames: 1024}
	store := config.NewStore(config.Default().Params)

	e, err := New(format, 1, store, &fakeInput{}, &fakeOutput{}, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	status := e.Status()
	if len(status.EQBands) != len(eq.DefaultCenters) {
		t.Fatalf("Expected %d band centres, got %d", len(eq.DefaultCenters), len(status.EQBands))
	}
	for i, c := range status.EQBands {
		if c != eq.DefaultCenters[i] {
			t.Errorf("Band %d: expected centre %f, got %f", i, eq.DefaultCenters[i], c)
		}
	}
}

func TestStatusDuringStart(t *testing.T) {
	format := audio.Format{SampleRate: 44100, Channels: 1, ChunkFrames: 1024}

	in := &fakeInput{fill: audio.NewSilence(format.ChunkFrames, 1), delay: time.Millisecond}
	out := &fakeOutput{}
	store := config.NewStore(config.Default().Params)

	e, err := New(format, 1, store, in, out, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// The control API may poll Status at any moment, including while Start
	// is still wiring up the ring.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			e.Status()
		}
	}()

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-done
	e.Stop()

	status := e.Status()
	if status.RingTarget < 2 {
		t.Errorf("Expected ring target of at least 2, got %d", status.RingTarget)
	}
}

func TestStartRejectsSecondStart(t *testing.T) {
	format := audio.Format{SampleRate: 44100, Channels: 1, ChunkFrames: 1024}

	in := &fakeInput{fill: audio.NewSilence(format.ChunkFrames, 1), delay: time.Millisecond}
	out := &fakeOutput{}
	store := config.NewStore(config.Default().Params)

	e, err := New(format, 1, store, in, out, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer e.Stop()

	if err := e.Start(context.Background()); err == nil {
		t.Error("Expected second Start to fail while running")
	}
}
