package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/iabetor/textspeaker/internal/audio"
	"github.com/iabetor/textspeaker/internal/logger"
)

// piperSampleRate 是 piper 中文/英文常用模型的输出采样率。
const piperSampleRate = 22050

// PiperEngine 使用 piper CLI 子进程实现离线语音合成。
type PiperEngine struct {
	modelPath string
	binary    string
}

// NewPiperEngine 创建指定模型的 Piper TTS 引擎。
func NewPiperEngine(modelPath string) *PiperEngine {
	return &PiperEngine{modelPath: modelPath, binary: "piper"}
}

func (p *PiperEngine) Name() string { return "piper" }

// Synthesize 将文本写入 piper 的 stdin，读取 signed 16-bit LE 单声道 PCM。
func (p *PiperEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	logger.Debugf("[tts] piper: 正在合成 %d 个字符，模型=%s", len([]rune(text)), p.modelPath)

	cmd := exec.CommandContext(ctx, p.binary, "--model", p.modelPath, "--output-raw")
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if s := stderr.String(); s != "" {
			logger.Warnf("[tts] piper stderr: %s", s)
		}
		return nil, 0, fmt.Errorf("[tts] piper 执行失败: %w", err)
	}

	if stdout.Len() == 0 {
		return nil, 0, ErrNoAudio
	}
	return audio.BytesToFloat32(stdout.Bytes()), piperSampleRate, nil
}
