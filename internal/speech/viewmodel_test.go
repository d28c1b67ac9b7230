package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iabetor/textspeaker/internal/audio"
	"github.com/iabetor/textspeaker/internal/history"
	"github.com/iabetor/textspeaker/internal/logger"
)

func init() { logger.Discard() }

type fakeEngine struct {
	samples []float32
	rate    int
	err     error
	panicV  interface{}
	block   chan struct{}
	started chan struct{}

	mu    sync.Mutex
	texts []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.samples, f.rate, f.err
}

func (f *fakeEngine) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type fakeSink struct {
	err    error
	panicV interface{}
	played [][]float32
	rates  []int
	closed bool
}

func (s *fakeSink) Play(ctx context.Context, samples []float32, rate int) error {
	if s.panicV != nil {
		panic(s.panicV)
	}
	s.played = append(s.played, samples)
	s.rates = append(s.rates, rate)
	return s.err
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

type fakeRecorder struct {
	records []history.Utterance
	err     error
}

func (r *fakeRecorder) Record(ctx context.Context, u *history.Utterance) error {
	r.records = append(r.records, *u)
	return r.err
}

func TestSpeech(t *testing.T) {
	viewModel := NewTextSpeechViewModel()
	viewModel.Speech()
}

func TestSpeech_ZeroValue(t *testing.T) {
	var vm TextSpeechViewModel
	vm.SetText("hello")
	vm.Speech()
	if vm.LastError() != nil {
		t.Fatalf("unexpected error: %v", vm.LastError())
	}
	if vm.State() != StateIdle {
		t.Fatalf("expected Idle, got %s", vm.State())
	}
}

func TestSpeech_NilReceiverDoesNotPanic(t *testing.T) {
	var vm *TextSpeechViewModel
	vm.Speech()
}

func TestSpeech_EmptyTextSkipsEngine(t *testing.T) {
	engine := &fakeEngine{}
	vm := NewTextSpeechViewModel(WithEngine(engine), WithText("   "))
	vm.Speech()

	if engine.calls() != 0 {
		t.Errorf("engine should not be called for blank text, got %d calls", engine.calls())
	}
	if err := vm.SpeechContext(context.Background()); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestSpeech_PlaysAndRecords(t *testing.T) {
	engine := &fakeEngine{samples: []float32{0.1, 0.2, 0.3, 0.4}, rate: 4}
	sink := &fakeSink{}
	rec := &fakeRecorder{}
	vm := NewTextSpeechViewModel(WithEngine(engine), WithSink(sink), WithHistory(rec), WithText("  你好，世界  "))

	vm.Speech()

	if vm.LastError() != nil {
		t.Fatalf("unexpected error: %v", vm.LastError())
	}
	if len(engine.texts) != 1 || engine.texts[0] != "你好，世界" {
		t.Errorf("engine should receive trimmed text, got %q", engine.texts)
	}
	if len(sink.played) != 1 || len(sink.played[0]) != 4 || sink.rates[0] != 4 {
		t.Errorf("unexpected playback: %v @ %v", sink.played, sink.rates)
	}
	if len(rec.records) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(rec.records))
	}
	r := rec.records[0]
	if r.Engine != "fake" || r.Samples != 4 || r.SampleRate != 4 || r.Duration != time.Second || r.Error != "" {
		t.Errorf("unexpected record: %+v", r)
	}
}

func TestSpeech_EngineErrorIsCaptured(t *testing.T) {
	boom := errors.New("service unavailable")
	sink := &fakeSink{}
	rec := &fakeRecorder{}
	vm := NewTextSpeechViewModel(WithEngine(&fakeEngine{err: boom}), WithSink(sink), WithHistory(rec), WithText("hi"))

	vm.Speech()

	if !errors.Is(vm.LastError(), boom) {
		t.Fatalf("expected LastError to wrap engine error, got %v", vm.LastError())
	}
	if len(sink.played) != 0 {
		t.Error("sink should not be used after synthesis failure")
	}
	if len(rec.records) != 1 || !strings.Contains(rec.records[0].Error, "service unavailable") {
		t.Errorf("expected failure recorded, got %+v", rec.records)
	}
	if vm.State() != StateIdle {
		t.Errorf("expected Idle after failure, got %s", vm.State())
	}
}

func TestSpeech_EnginePanicIsRecovered(t *testing.T) {
	vm := NewTextSpeechViewModel(WithEngine(&fakeEngine{panicV: "bad model"}), WithText("hi"))
	vm.Speech()

	if vm.LastError() == nil || !strings.Contains(vm.LastError().Error(), "bad model") {
		t.Fatalf("expected panic converted to error, got %v", vm.LastError())
	}
	if !vm.CanSpeech() {
		t.Error("view-model should be usable again after a panic")
	}
}

func TestSpeech_SinkFailureIsCaptured(t *testing.T) {
	engine := &fakeEngine{samples: []float32{0.1}, rate: 16000}

	vm := NewTextSpeechViewModel(WithEngine(engine), WithSink(&fakeSink{err: errors.New("no device")}), WithText("hi"))
	vm.Speech()
	if vm.LastError() == nil {
		t.Fatal("expected playback error")
	}

	vm = NewTextSpeechViewModel(WithEngine(engine), WithSink(&fakeSink{panicV: "driver crash"}), WithText("hi"))
	vm.Speech()
	if vm.LastError() == nil || !strings.Contains(vm.LastError().Error(), "driver crash") {
		t.Fatalf("expected sink panic converted to error, got %v", vm.LastError())
	}
}

func TestSpeech_SuccessClearsLastError(t *testing.T) {
	engine := &fakeEngine{err: errors.New("flaky")}
	vm := NewTextSpeechViewModel(WithEngine(engine), WithText("hi"))
	vm.Speech()
	if vm.LastError() == nil {
		t.Fatal("expected error on first attempt")
	}

	engine.err = nil
	vm.Speech()
	if vm.LastError() != nil {
		t.Fatalf("expected LastError cleared, got %v", vm.LastError())
	}
}

func TestSpeech_IgnoresConcurrentCall(t *testing.T) {
	engine := &fakeEngine{block: make(chan struct{}), started: make(chan struct{})}
	vm := NewTextSpeechViewModel(WithEngine(engine), WithText("hi"))

	done := make(chan error, 1)
	go func() { done <- vm.SpeechContext(context.Background()) }()
	<-engine.started

	if vm.CanSpeech() {
		t.Error("CanSpeech should be false while synthesizing")
	}
	if err := vm.SpeechContext(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	vm.Speech() // 不应阻塞或报错

	close(engine.block)
	if err := <-done; err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if engine.calls() != 1 {
		t.Errorf("expected exactly one synthesis, got %d", engine.calls())
	}
}

func TestSpeechContext_Timeout(t *testing.T) {
	engine := &fakeEngine{block: make(chan struct{})}
	vm := NewTextSpeechViewModel(WithEngine(engine), WithText("hi"), WithTimeout(20*time.Millisecond))

	err := vm.SpeechContext(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if vm.State() != StateIdle {
		t.Errorf("expected Idle after timeout, got %s", vm.State())
	}
}

// realtimeSink 像扬声器一样阻塞到音频播完。
type realtimeSink struct{ played int }

func (s *realtimeSink) Play(ctx context.Context, samples []float32, rate int) error {
	select {
	case <-time.After(audio.Duration(len(samples), rate)):
		s.played += len(samples)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestSpeech_PlaybackLongerThanTimeoutIsNotCut(t *testing.T) {
	// 300ms 的音频，超时只有 50ms
	engine := &fakeEngine{samples: make([]float32, 30), rate: 100}
	sink := &realtimeSink{}
	vm := NewTextSpeechViewModel(WithEngine(engine), WithSink(sink), WithText("很长的一段话"), WithTimeout(50*time.Millisecond))

	if err := vm.SpeechContext(context.Background()); err != nil {
		t.Fatalf("playback should finish, got %v", err)
	}
	if sink.played != 30 {
		t.Errorf("expected all 30 samples played, got %d", sink.played)
	}
}

func TestSpeech_CallerCancelStopsPlayback(t *testing.T) {
	engine := &fakeEngine{samples: make([]float32, 1000), rate: 100}
	vm := NewTextSpeechViewModel(WithEngine(engine), WithSink(&realtimeSink{}), WithText("hi"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := vm.SpeechContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected caller deadline to stop playback, got %v", err)
	}
	if vm.State() != StateIdle {
		t.Errorf("expected Idle, got %s", vm.State())
	}
}

func TestSpeech_RecorderFailureDoesNotFailSpeech(t *testing.T) {
	vm := NewTextSpeechViewModel(WithHistory(&fakeRecorder{err: errors.New("disk full")}), WithText("hi"))
	if err := vm.SpeechContext(context.Background()); err != nil {
		t.Fatalf("recorder failure should not fail speech: %v", err)
	}
}

func TestPropertyChanged(t *testing.T) {
	engine := &fakeEngine{samples: []float32{0.1}, rate: 16000}
	vm := NewTextSpeechViewModel(WithEngine(engine), WithSink(&fakeSink{}))

	var names []string
	vm.SetOnPropertyChanged(func(name string) { names = append(names, name) })

	vm.SetText("hi")
	vm.SetText("hi") // 未变化
	vm.Speech()

	want := []string{
		PropText, PropCanSpeech,
		PropState, PropCanSpeech, // Idle → Synthesizing
		PropState, PropCanSpeech, // Synthesizing → Speaking
		PropState, PropCanSpeech, // Speaking → Idle
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", names, want)
	}
}

func TestPropertyChanged_LastError(t *testing.T) {
	vm := NewTextSpeechViewModel(WithEngine(&fakeEngine{err: errors.New("x")}), WithText("hi"))
	var lastErrNotified int
	vm.SetOnPropertyChanged(func(name string) {
		if name == PropLastError {
			lastErrNotified++
		}
	})
	vm.Speech()
	if lastErrNotified != 1 {
		t.Errorf("expected one LastError notification, got %d", lastErrNotified)
	}
}

func TestClose_ClosesSink(t *testing.T) {
	sink := &fakeSink{}
	vm := NewTextSpeechViewModel(WithSink(sink))
	if err := vm.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !sink.closed {
		t.Error("expected sink closed")
	}
}

func TestSpeech_WithSQLiteHistory(t *testing.T) {
	store, err := history.Open(t.TempDir()+"/history.db", 0)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()

	vm := NewTextSpeechViewModel(WithHistory(store), WithText("记录一下"))
	vm.Speech()

	got, err := store.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 || got[0].Text != "记录一下" || got[0].Engine != "silent" {
		t.Errorf("unexpected history: %+v", got)
	}
}
