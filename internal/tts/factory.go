package tts

import (
	"fmt"
	"time"

	"github.com/iabetor/textspeaker/internal/config"
	"github.com/iabetor/textspeaker/internal/logger"
)

// New 根据配置创建合成引擎。
// 配置了 fallback 时返回 FallbackEngine；兜底引擎创建失败只记录警告。
func New(cfg config.TTSConfig) (Engine, error) {
	primary, err := newEngine(cfg.Engine, cfg)
	if err != nil {
		return nil, err
	}
	if len(cfg.Fallback) == 0 {
		return primary, nil
	}

	engines := []Engine{primary}
	seen := map[string]bool{cfg.Engine: true}
	for _, name := range cfg.Fallback {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		e, err := newEngine(name, cfg)
		if err != nil {
			logger.Warnf("[tts] 兜底引擎 %s 不可用: %v", name, err)
			continue
		}
		engines = append(engines, e)
	}
	if len(engines) == 1 {
		return primary, nil
	}
	return NewFallbackEngine(time.Duration(cfg.RecoverySec)*time.Second, engines...)
}

func newEngine(name string, cfg config.TTSConfig) (Engine, error) {
	switch name {
	case "edge":
		return NewEdgeEngine(cfg.Edge.Voice), nil
	case "tencent":
		return NewTencentEngine(TencentConfig{
			SecretID:  cfg.Tencent.SecretID,
			SecretKey: cfg.Tencent.SecretKey,
			VoiceType: cfg.Tencent.VoiceType,
			Region:    cfg.Tencent.Region,
			Speed:     cfg.Tencent.Speed,
			Volume:    cfg.Tencent.Volume,
		})
	case "sherpa":
		return NewSherpaEngine(SherpaConfig{
			Model:      cfg.Sherpa.Model,
			Lexicon:    cfg.Sherpa.Lexicon,
			Tokens:     cfg.Sherpa.Tokens,
			DataDir:    cfg.Sherpa.DataDir,
			SpeakerID:  cfg.Sherpa.SpeakerID,
			Speed:      cfg.Sherpa.Speed,
			NumThreads: cfg.Sherpa.NumThreads,
		})
	case "piper":
		if cfg.Piper.ModelPath == "" {
			return nil, fmt.Errorf("[tts] piper 需要 model_path")
		}
		return NewPiperEngine(cfg.Piper.ModelPath), nil
	case "say":
		return NewSayEngine(cfg.Say.Voice), nil
	case "silent", "none":
		return NewSilentEngine(), nil
	default:
		return nil, fmt.Errorf("[tts] 不支持的引擎: %q", name)
	}
}
