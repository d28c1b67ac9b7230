package tts

import (
	"context"
	"errors"
)

// ErrNoAudio 表示引擎没有返回任何音频数据。
var ErrNoAudio = errors.New("[tts] 未收到音频数据")

// Engine 定义语音合成后端接口。
type Engine interface {
	// Synthesize 将文本转换为音频。
	// 返回单声道 float32 样本、采样率（Hz）和错误。
	Synthesize(ctx context.Context, text string) ([]float32, int, error)
}

// Named 由能报告自身名称的引擎实现，用于日志和朗读历史。
type Named interface {
	Name() string
}

// NameOf 返回引擎名称，未实现 Named 时返回 "unknown"。
func NameOf(e Engine) string {
	if n, ok := e.(Named); ok {
		return n.Name()
	}
	return "unknown"
}
