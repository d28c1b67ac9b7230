package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/iabetor/textspeaker/internal/audio"
	"github.com/iabetor/textspeaker/internal/config"
	"github.com/iabetor/textspeaker/internal/logger"
)

func init() { logger.Discard() }

type closingEngine struct{ closed bool }

func (e *closingEngine) Name() string { return "closing" }

func (e *closingEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	return nil, 0, nil
}

func (e *closingEngine) Close() error {
	e.closed = true
	return nil
}

func TestOpenSink_ClosesEngineOnFailure(t *testing.T) {
	engine := &closingEngine{}
	if _, err := openSink(engine, config.AudioConfig{Output: "bluetooth"}, ""); err == nil {
		t.Fatal("expected error for unsupported output")
	}
	if !engine.closed {
		t.Error("engine should be closed when the sink cannot be created")
	}
}

func TestOpenSink_KeepsEngineOnSuccess(t *testing.T) {
	engine := &closingEngine{}
	sink, err := openSink(engine, config.AudioConfig{Output: "discard"}, "")
	if err != nil {
		t.Fatalf("openSink failed: %v", err)
	}
	if sink != audio.Discard {
		t.Errorf("expected Discard sink, got %T", sink)
	}
	if engine.closed {
		t.Error("engine should stay open on success")
	}
}

func TestNewSink_OutPathWinsOverConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	sink, err := newSink(config.AudioConfig{Output: "speaker"}, path)
	if err != nil {
		t.Fatalf("newSink failed: %v", err)
	}
	w, ok := sink.(*audio.WAVWriter)
	if !ok {
		t.Fatalf("expected *audio.WAVWriter, got %T", sink)
	}
	if err := w.Play(context.Background(), []float32{0.1}, 16000); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if w.LastPath() != path {
		t.Errorf("LastPath: got %q, want %q", w.LastPath(), path)
	}
}
