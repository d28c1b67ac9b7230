package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/iabetor/textspeaker/internal/audio"
	"github.com/iabetor/textspeaker/internal/logger"
)

const saySampleRate = 22050

// SayEngine 使用 macOS 内置 say 命令实现语音合成，仅在 macOS 上可用。
type SayEngine struct {
	voice string // 如 "Tingting"，为空时使用系统默认语音
}

// NewSayEngine 创建 macOS say TTS 引擎。
func NewSayEngine(voice string) *SayEngine {
	return &SayEngine{voice: voice}
}

func (s *SayEngine) Name() string { return "say" }

// Synthesize 先用 say 输出 AIFF，再用 afconvert 转为 16-bit LE 单声道 WAV。
func (s *SayEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	logger.Debugf("[tts] say: 正在合成 %d 个字符", len([]rune(text)))

	tmp, err := os.CreateTemp("", "textspeaker-say-*.aiff")
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] say: 创建临时文件失败: %w", err)
	}
	aiffPath := tmp.Name()
	tmp.Close()
	defer os.Remove(aiffPath)

	wavPath := aiffPath + ".wav"
	defer os.Remove(wavPath)

	args := []string{"-o", aiffPath}
	if s.voice != "" {
		args = append(args, "-v", s.voice)
	}
	args = append(args, text)

	if err := run(ctx, "say", args...); err != nil {
		return nil, 0, err
	}
	if err := run(ctx, "afconvert", "-f", "WAVE", "-d", fmt.Sprintf("LEI16@%d", saySampleRate), "-c", "1", aiffPath, wavPath); err != nil {
		return nil, 0, err
	}

	f, err := os.Open(wavPath)
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] say: 读取输出文件失败: %w", err)
	}
	defer f.Close()

	samples, rate, err := audio.DecodeWAV(f)
	if errors.Is(err, audio.ErrEmptyWAV) {
		return nil, 0, ErrNoAudio
	}
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] say: %w", err)
	}
	return samples, rate, nil
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("[tts] %s 执行失败: %w, stderr: %s", name, err, stderr.String())
	}
	return nil
}
