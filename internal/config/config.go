package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 是 TextSpeaker 的顶层配置结构。
type Config struct {
	DataDir string        `yaml:"data_dir"`
	TTS     TTSConfig     `yaml:"tts"`
	Audio   AudioConfig   `yaml:"audio"`
	Speech  SpeechConfig  `yaml:"speech"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`
}

// TTSConfig 语音合成配置。
type TTSConfig struct {
	// Engine 主引擎：edge, tencent, sherpa, piper, say, silent。
	Engine string `yaml:"engine"`
	// Fallback 主引擎失败后依次尝试的引擎。
	Fallback []string `yaml:"fallback"`
	// RecoverySec 失败引擎被重新尝试前的等待时间（秒）。
	RecoverySec int `yaml:"recovery_sec"`

	Edge    EdgeConfig    `yaml:"edge"`
	Tencent TencentConfig `yaml:"tencent"`
	Sherpa  SherpaConfig  `yaml:"sherpa"`
	Piper   PiperConfig   `yaml:"piper"`
	Say     SayConfig     `yaml:"say"`
}

// EdgeConfig Edge TTS 配置。
type EdgeConfig struct {
	Voice string `yaml:"voice"`
}

// TencentConfig 腾讯云 TTS 配置。
// Speed 与 Volume 为 0 时即服务端的 1.0 倍速和正常音量。
type TencentConfig struct {
	SecretID  string  `yaml:"secret_id"`
	SecretKey string  `yaml:"secret_key"`
	VoiceType int64   `yaml:"voice_type"`
	Region    string  `yaml:"region"`
	Speed     float64 `yaml:"speed"`
	Volume    float64 `yaml:"volume"`
}

// SherpaConfig sherpa-onnx 离线 VITS 模型配置。
type SherpaConfig struct {
	Model      string  `yaml:"model"`
	Lexicon    string  `yaml:"lexicon"`
	Tokens     string  `yaml:"tokens"`
	DataDir    string  `yaml:"data_dir"`
	SpeakerID  int     `yaml:"speaker_id"`
	Speed      float32 `yaml:"speed"`
	NumThreads int     `yaml:"num_threads"`
}

// PiperConfig Piper TTS 配置。
type PiperConfig struct {
	ModelPath string `yaml:"model_path"`
}

// SayConfig macOS say 配置。
type SayConfig struct {
	Voice string `yaml:"voice"`
}

// AudioConfig 音频输出配置。
type AudioConfig struct {
	// Output 输出方式：speaker, wav, discard。
	Output   string `yaml:"output"`
	Channels int    `yaml:"channels"`
	// WAVDir Output 为 wav 时的输出目录。
	WAVDir string `yaml:"wav_dir"`
}

// SpeechConfig 朗读配置。
type SpeechConfig struct {
	// DefaultText 启动时填入视图模型的文本。
	DefaultText string `yaml:"default_text"`
	// TimeoutSec 合成的超时时间（秒）。播放的期限在此基础上再加音频时长。
	TimeoutSec int `yaml:"timeout_sec"`
}

// HistoryConfig 朗读历史配置。
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
	// Keep 保留的最大记录数，0 表示不清理。
	Keep int `yaml:"keep"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析 YAML 配置内容并填充默认值。
func Parse(data []byte) (*Config, error) {
	expanded := os.Expand(string(data), os.Getenv)

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// Default 返回只包含默认值的配置，配置文件缺失时使用。
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	cfg.DataDir = expandHome(cfg.DataDir)
	if cfg.DataDir == "" {
		if home, _ := os.UserHomeDir(); home != "" {
			cfg.DataDir = filepath.Join(home, ".textspeaker")
		} else {
			cfg.DataDir = "./.textspeaker-data"
		}
	}

	if cfg.TTS.Engine == "" {
		cfg.TTS.Engine = "edge"
	}
	cfg.TTS.Engine = strings.ToLower(cfg.TTS.Engine)
	for i, name := range cfg.TTS.Fallback {
		cfg.TTS.Fallback[i] = strings.ToLower(strings.TrimSpace(name))
	}
	if cfg.TTS.RecoverySec == 0 {
		cfg.TTS.RecoverySec = 300
	}
	if cfg.TTS.Edge.Voice == "" {
		cfg.TTS.Edge.Voice = "zh-CN-XiaoxiaoNeural"
	}
	if cfg.TTS.Sherpa.Speed == 0 {
		cfg.TTS.Sherpa.Speed = 1.0
	}
	for _, p := range []*string{
		&cfg.TTS.Sherpa.Model, &cfg.TTS.Sherpa.Lexicon, &cfg.TTS.Sherpa.Tokens,
		&cfg.TTS.Sherpa.DataDir, &cfg.TTS.Piper.ModelPath, &cfg.Log.File,
	} {
		*p = expandHome(*p)
	}
	if cfg.TTS.Sherpa.NumThreads == 0 {
		cfg.TTS.Sherpa.NumThreads = 2
	}

	if cfg.Audio.Output == "" {
		cfg.Audio.Output = "speaker"
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.WAVDir == "" {
		cfg.Audio.WAVDir = filepath.Join(cfg.DataDir, "wav")
	} else {
		cfg.Audio.WAVDir = expandHome(cfg.Audio.WAVDir)
	}

	if cfg.Speech.TimeoutSec == 0 {
		cfg.Speech.TimeoutSec = 30
	}

	if cfg.History.DBPath == "" {
		cfg.History.DBPath = filepath.Join(cfg.DataDir, "history.db")
	} else {
		cfg.History.DBPath = expandHome(cfg.History.DBPath)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// 去除凭据两端可能的空白（环境变量展开后常见）
	cfg.TTS.Tencent.SecretID = strings.TrimSpace(cfg.TTS.Tencent.SecretID)
	cfg.TTS.Tencent.SecretKey = strings.TrimSpace(cfg.TTS.Tencent.SecretKey)
}

// expandHome 把 ~/ 前缀替换为用户主目录，Go 不会自动展开。
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return p
	}
	return filepath.Join(home, p[2:])
}
