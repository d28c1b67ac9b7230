package tts

import (
	"context"

	"github.com/iabetor/textspeaker/internal/logger"
)

// SilentEngine 不产生任何音频，只记录日志。
// 作为没有配置合成服务时的默认引擎。
type SilentEngine struct{}

// NewSilentEngine 创建静音引擎。
func NewSilentEngine() *SilentEngine { return &SilentEngine{} }

func (SilentEngine) Name() string { return "silent" }

func (SilentEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	logger.Debugf("[tts] silent: 跳过合成 %d 个字符", len([]rune(text)))
	return nil, 0, nil
}
