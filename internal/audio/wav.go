package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrEmptyWAV 表示 WAV 中没有 PCM 样本。
var ErrEmptyWAV = errors.New("[audio] WAV 中没有音频数据")

const wavFormatPCM = 1

// WriteWAV 把单声道样本编码为 16-bit PCM WAV。
// 编码器结束时需要回写头部长度，所以 w 必须可 Seek。
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, wavFormatPCM)

	data := make([]int, len(samples))
	for i, s := range Float32ToInt16(samples) {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("[audio] 编码 WAV 失败: %w", err)
	}
	return enc.Close()
}

// DecodeWAV 读取 PCM WAV 并返回单声道 float32 样本和采样率。
// fmt 与 data 之间的其他块（如 afconvert 写入的 FLLR）会被跳过，多声道取平均。
func DecodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("[audio] 解析 WAV 失败: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("[audio] WAV 格式无效")
	}

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, 0, ErrEmptyWAV
	}

	// 8-bit PCM 为无符号，其余为有符号
	bitDepth := buf.SourceBitDepth
	if bitDepth < 8 {
		return nil, 0, fmt.Errorf("[audio] 不支持的位深: %d", bitDepth)
	}
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	scale := float32(int64(1) << (bitDepth - 1))

	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c] - offset
		}
		out[i] = float32(sum) / float32(channels) / scale
	}
	return out, buf.Format.SampleRate, nil
}
