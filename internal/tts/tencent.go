package tts

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tcTTS "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"

	"github.com/iabetor/textspeaker/internal/logger"
)

// tencentMaxRunes 是腾讯云基础语音合成单次请求的文本上限。
const tencentMaxRunes = 150

// TencentEngine 使用腾讯云 TTS 实现语音合成。
type TencentEngine struct {
	client    *tcTTS.Client
	voiceType int64
	speed     float64
	volume    float64
}

// TencentConfig 腾讯云 TTS 配置。
// Speed 取值 [-2, 6]，Volume 取值 [-10, 10]，两者为 0 时分别表示 1.0 倍速和正常音量。
type TencentConfig struct {
	SecretID  string
	SecretKey string
	VoiceType int64
	Region    string
	Speed     float64
	Volume    float64
}

// NewTencentEngine 创建腾讯云 TTS 引擎。
func NewTencentEngine(cfg TencentConfig) (*TencentEngine, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 需要 SecretID 和 SecretKey")
	}
	if cfg.VoiceType == 0 {
		cfg.VoiceType = 1001
	}
	if cfg.Region == "" {
		cfg.Region = "ap-guangzhou"
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tts.tencentcloudapi.com"

	client, err := tcTTS.NewClient(credential, cfg.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建腾讯云 TTS 客户端失败: %w", err)
	}

	logger.Infof("[tts] 腾讯云 TTS 引擎已初始化 (voice=%d, region=%s)", cfg.VoiceType, cfg.Region)

	return &TencentEngine{
		client:    client,
		voiceType: cfg.VoiceType,
		speed:     cfg.Speed,
		volume:    cfg.Volume,
	}, nil
}

func (e *TencentEngine) Name() string { return "tencent" }

// Synthesize 将文本合成为单声道 float32 音频样本。
// 超过单次请求上限的文本按句子切分后逐段合成再拼接。
func (e *TencentEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	var (
		out  []float32
		rate int
	)
	for _, part := range SplitText(text, tencentMaxRunes) {
		samples, sr, err := e.synthesizeOne(ctx, part)
		if err != nil {
			return nil, 0, err
		}
		if rate != 0 && sr != rate {
			return nil, 0, fmt.Errorf("[tts] 腾讯云 TTS: 分段采样率不一致 (%d != %d)", sr, rate)
		}
		rate = sr
		out = append(out, samples...)
	}
	if len(out) == 0 {
		return nil, 0, ErrNoAudio
	}
	return out, rate, nil
}

func (e *TencentEngine) synthesizeOne(ctx context.Context, text string) ([]float32, int, error) {
	logger.Debugf("[tts] 腾讯云 TTS: 正在合成 %d 个字符，音色=%d", len([]rune(text)), e.voiceType)

	response, err := e.client.TextToVoiceWithContext(ctx, e.newRequest(text))
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] 腾讯云 TTS 合成失败: %w", err)
	}
	if response.Response == nil || response.Response.Audio == nil {
		return nil, 0, ErrNoAudio
	}

	mp3Data, err := base64.StdEncoding.DecodeString(*response.Response.Audio)
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] Base64 解码失败: %w", err)
	}

	logger.Debugf("[tts] 腾讯云 TTS: 收到 %d 字节 MP3 数据", len(mp3Data))
	return decodeMP3(ctx, mp3Data)
}

func (e *TencentEngine) newRequest(text string) *tcTTS.TextToVoiceRequest {
	request := tcTTS.NewTextToVoiceRequest()
	request.Text = common.StringPtr(text)
	request.SessionId = common.StringPtr(newSessionID())
	request.VoiceType = common.Int64Ptr(e.voiceType)
	request.Codec = common.StringPtr("mp3")
	request.Speed = common.Float64Ptr(e.speed)
	request.Volume = common.Float64Ptr(e.volume)
	return request
}
