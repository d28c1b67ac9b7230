package tts

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestCollectAudio_JoinsAudioMessages(t *testing.T) {
	ch := make(chan map[string]interface{}, 4)
	ch <- map[string]interface{}{"type": "audio", "data": []byte{1, 2}}
	ch <- map[string]interface{}{"type": "WordBoundary", "text": "你好"}
	ch <- map[string]interface{}{"type": "audio", "data": []byte{3}}
	close(ch)

	got, err := collectAudio(context.Background(), ch)
	if err != nil {
		t.Fatalf("collectAudio failed: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestCollectAudio_StalledStreamHonoursCancel(t *testing.T) {
	ch := make(chan map[string]interface{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := collectAudio(ctx, ch); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// 返回后发送方不应被阻塞
	sent := make(chan struct{})
	go func() {
		ch <- map[string]interface{}{"type": "audio", "data": []byte{1}}
		close(ch)
		close(sent)
	}()
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("sender blocked after cancellation")
	}
}
