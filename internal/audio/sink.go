package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sink 接收合成好的单声道 float32 音频。
// Play 阻塞直到音频输出完成或 ctx 被取消。
type Sink interface {
	Play(ctx context.Context, samples []float32, sampleRate int) error
}

// Discard 丢弃所有音频。
var Discard Sink = discard{}

type discard struct{}

func (discard) Play(ctx context.Context, _ []float32, _ int) error {
	return ctx.Err()
}

// WAVWriter 将每段音频写为一个 16-bit 单声道 WAV 文件，用于无声卡环境。
type WAVWriter struct {
	dir   string
	fixed string

	mu   sync.Mutex
	seq  int
	last string
	now  func() time.Time
}

// NewWAVWriter 创建输出到 dir 的 WAVWriter，目录不存在时自动创建。
func NewWAVWriter(dir string) (*WAVWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("[audio] 创建 WAV 输出目录失败: %w", err)
	}
	return &WAVWriter{dir: dir, now: time.Now}, nil
}

// NewWAVFile 创建总是写入同一路径的 WAVWriter。
func NewWAVFile(path string) (*WAVWriter, error) {
	w, err := NewWAVWriter(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	w.fixed = path
	return w, nil
}

// Play 把样本写成 WAV 文件。
func (w *WAVWriter) Play(ctx context.Context, samples []float32, sampleRate int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sampleRate <= 0 {
		return fmt.Errorf("[audio] 无效采样率: %d", sampleRate)
	}

	path := w.nextPath()
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("[audio] 创建 WAV 文件失败: %w", err)
	}
	defer f.Close()

	if err := WriteWAV(f, samples, sampleRate); err != nil {
		return fmt.Errorf("[audio] 写入 %s 失败: %w", path, err)
	}
	return f.Close()
}

// LastPath 返回最近一次写入的文件路径。
func (w *WAVWriter) LastPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *WAVWriter) nextPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fixed != "" {
		w.last = w.fixed
		return w.last
	}
	w.seq++
	w.last = filepath.Join(w.dir, fmt.Sprintf("speech-%s-%03d.wav", w.now().Format("20060102-150405"), w.seq))
	return w.last
}
