package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Float32ToInt16 将 float32 样本转换为 PCM int16，超出 [-1.0, 1.0] 的值会被钳位。
func Float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * math.MaxInt16)
	}
	return out
}

// pcmScale 把 int16 映射到 [-1.0, 1.0)，所有解码路径使用同一刻度。
const pcmScale = 32768.0

// BytesToFloat32 将 signed 16-bit LE 单声道 PCM 字节转换为 float32，奇数尾字节被丢弃。
func BytesToFloat32(b []byte) []float32 {
	n := len(b) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(b[2*i:]))
		out[i] = float32(s) / pcmScale
	}
	return out
}

// Float32ToBytes 将 float32 样本转换为 signed 16-bit LE PCM 字节。
func Float32ToBytes(in []float32) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range Float32ToInt16(in) {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// StereoToMono 将 signed 16-bit LE 立体声 PCM 转换为单声道 float32。
// 左右声道取平均；不完整的尾部帧被截掉。
func StereoToMono(pcm []byte) []float32 {
	const bytesPerFrame = 4
	n := len(pcm) / bytesPerFrame
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		off := i * bytesPerFrame
		left := int16(binary.LittleEndian.Uint16(pcm[off:]))
		right := int16(binary.LittleEndian.Uint16(pcm[off+2:]))
		out[i] = (float32(left) + float32(right)) / 2.0 / pcmScale
	}
	return out
}

// Duration 返回给定样本数在该采样率下的播放时长。
func Duration(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
