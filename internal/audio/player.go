package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/iabetor/textspeaker/internal/logger"
)

// Player 使用 malgo (miniaudio) 通过默认扬声器播放音频。
type Player struct {
	ctx      *malgo.AllocatedContext
	channels uint32
	mu       sync.Mutex
	closed   bool
}

// NewPlayer 创建音频播放实例。
// channels 为输出声道数，大于 1 时单声道样本会被复制到每个声道。
func NewPlayer(channels int) (*Player, error) {
	if channels <= 0 {
		channels = 1
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("[audio] 初始化播放上下文失败: %w", err)
	}

	return &Player{
		ctx:      ctx,
		channels: uint32(channels),
	}, nil
}

// Play 播放单声道 float32 样本，阻塞直到播放完成或 ctx 被取消。
func (p *Player) Play(ctx context.Context, samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("[audio] 播放器已关闭")
	}
	p.mu.Unlock()

	pcm := interleave(Float32ToBytes(samples), int(p.channels))
	pos := 0
	done := make(chan struct{}, 1)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = p.channels
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInFrames = 512
	deviceConfig.Periods = 2

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			need := int(frameCount) * int(p.channels) * 2
			if need > len(out) {
				need = len(out)
			}
			n := copy(out[:need], pcm[pos:])
			for i := n; i < need; i++ {
				out[i] = 0
			}
			pos += n
			if pos >= len(pcm) {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("[audio] 初始化播放设备失败: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("[audio] 启动播放设备失败: %w", err)
	}
	defer device.Stop()

	select {
	case <-ctx.Done():
		logger.Debugf("[audio] 播放被取消")
		return ctx.Err()
	case <-done:
		logger.Debugf("[audio] 播放完成，%v", Duration(len(samples), sampleRate))
		return nil
	}
}

// Close 释放播放上下文。
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
	return nil
}

// interleave 将单声道 16-bit PCM 复制为 channels 个交错声道。
func interleave(mono []byte, channels int) []byte {
	if channels <= 1 {
		return mono
	}
	out := make([]byte, 0, len(mono)*channels)
	for i := 0; i+1 < len(mono); i += 2 {
		for c := 0; c < channels; c++ {
			out = append(out, mono[i], mono[i+1])
		}
	}
	return out
}
