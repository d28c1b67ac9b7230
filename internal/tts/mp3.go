package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/iabetor/textspeaker/internal/audio"
)

// decodeMP3 将 MP3 数据解码为单声道 float32 样本。
// go-mp3 总是输出立体声 signed 16-bit LE PCM。
func decodeMP3(ctx context.Context, data []byte) ([]float32, int, error) {
	if len(data) == 0 {
		return nil, 0, ErrNoAudio
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] MP3 解码失败: %w", err)
	}

	var pcm bytes.Buffer
	buf := make([]byte, 8192)
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		n, err := decoder.Read(buf)
		pcm.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("[tts] 读取 PCM 数据失败: %w", err)
		}
	}

	samples := audio.StereoToMono(pcm.Bytes())
	if len(samples) == 0 {
		return nil, 0, ErrNoAudio
	}
	return samples, decoder.SampleRate(), nil
}
