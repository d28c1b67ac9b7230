package tts

import (
	"context"
	"fmt"
	"os"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/iabetor/textspeaker/internal/logger"
)

// SherpaConfig sherpa-onnx 离线 VITS 模型配置。
type SherpaConfig struct {
	Model      string
	Lexicon    string
	Tokens     string
	DataDir    string
	SpeakerID  int
	Speed      float32
	NumThreads int
}

// SherpaEngine 使用 sherpa-onnx OfflineTts 在本地合成语音，不依赖网络。
type SherpaEngine struct {
	mu    sync.Mutex
	tts   *sherpa.OfflineTts
	sid   int
	speed float32
}

// NewSherpaEngine 加载 VITS 模型并创建离线合成引擎。
func NewSherpaEngine(cfg SherpaConfig) (*SherpaEngine, error) {
	if cfg.Model == "" || cfg.Tokens == "" {
		return nil, fmt.Errorf("[tts] sherpa 需要 model 和 tokens 路径")
	}
	for _, p := range []string{cfg.Model, cfg.Tokens} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("[tts] sherpa 模型文件不可用: %w", err)
		}
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 2
	}

	config := sherpa.OfflineTtsConfig{}
	config.Model.Vits.Model = cfg.Model
	config.Model.Vits.Lexicon = cfg.Lexicon
	config.Model.Vits.Tokens = cfg.Tokens
	config.Model.Vits.DataDir = cfg.DataDir
	config.Model.Vits.NoiseScale = 0.667
	config.Model.Vits.NoiseScaleW = 0.8
	config.Model.Vits.LengthScale = 1.0
	config.Model.NumThreads = cfg.NumThreads
	config.Model.Provider = "cpu"
	config.MaxNumSentences = 1

	impl := sherpa.NewOfflineTts(&config)
	if impl == nil {
		return nil, fmt.Errorf("[tts] sherpa 创建 OfflineTts 失败，请检查模型配置")
	}

	logger.Infof("[tts] sherpa 离线引擎已加载 (model=%s, sid=%d)", cfg.Model, cfg.SpeakerID)
	return &SherpaEngine{tts: impl, sid: cfg.SpeakerID, speed: cfg.Speed}, nil
}

func (e *SherpaEngine) Name() string { return "sherpa" }

// Synthesize 调用 OfflineTts.Generate 生成音频。
// Generate 本身不可取消，只在调用前后检查 ctx。
func (e *SherpaEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tts == nil {
		return nil, 0, fmt.Errorf("[tts] sherpa 引擎已关闭")
	}

	logger.Debugf("[tts] sherpa: 正在合成 %d 个字符", len([]rune(text)))
	generated := e.tts.Generate(text, e.sid, e.speed)
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if generated == nil || len(generated.Samples) == 0 {
		return nil, 0, ErrNoAudio
	}
	return generated.Samples, generated.SampleRate, nil
}

// Close 释放模型资源。
func (e *SherpaEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tts != nil {
		sherpa.DeleteOfflineTts(e.tts)
		e.tts = nil
	}
	return nil
}
