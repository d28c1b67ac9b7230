package tts

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/iabetor/textspeaker/internal/logger"
)

// EdgeEngine 使用微软 Edge TTS 实现语音合成，
// 通过 edge-tts-go 获取 MP3 音频，再用 go-mp3 解码为 PCM。
type EdgeEngine struct {
	voice string
}

// NewEdgeEngine 创建指定语音的 Edge TTS 引擎。
func NewEdgeEngine(voice string) *EdgeEngine {
	return &EdgeEngine{voice: voice}
}

func (e *EdgeEngine) Name() string { return "edge" }

// Synthesize 将文本合成为单声道 float32 音频样本。
func (e *EdgeEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	logger.Debugf("[tts] edge: 正在合成 %d 个字符，语音=%s", len([]rune(text)), e.voice)

	comm, err := edge.NewCommunicate(text, edge.WithVoice(e.voice))
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] edge 创建实例失败: %w", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] edge 开始流式合成失败: %w", err)
	}

	mp3Data, err := collectAudio(ctx, ch)
	if err != nil {
		return nil, 0, err
	}

	logger.Debugf("[tts] edge: 收到 %d 字节 MP3 数据", len(mp3Data))
	return decodeMP3(ctx, mp3Data)
}

// collectAudio 拼接 type=="audio" 消息中的 MP3 数据块，直到流结束或 ctx 取消。
// 提前返回时在后台排空 ch，避免 edge-tts-go 的发送方阻塞。
func collectAudio(ctx context.Context, ch <-chan map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			go func() {
				for range ch {
				}
			}()
			return nil, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return buf.Bytes(), nil
			}
			if msgType, _ := msg["type"].(string); msgType == "audio" {
				if data, ok := msg["data"].([]byte); ok {
					buf.Write(data)
				}
			}
		}
	}
}
