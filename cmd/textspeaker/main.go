package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/iabetor/textspeaker/internal/audio"
	"github.com/iabetor/textspeaker/internal/config"
	"github.com/iabetor/textspeaker/internal/history"
	"github.com/iabetor/textspeaker/internal/logger"
	"github.com/iabetor/textspeaker/internal/speech"
	"github.com/iabetor/textspeaker/internal/tts"
)

const defaultConfigPath = "configs/textspeaker.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "配置文件路径")
	engineName := flag.String("engine", "", "覆盖配置中的合成引擎 (edge|tencent|sherpa|piper|say|silent)")
	outPath := flag.String("out", "", "把音频写入 WAV 文件而不是扬声器")
	verbose := flag.Bool("v", false, "输出调试日志")
	flag.Usage = printUsage
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *engineName != "" {
		cfg.TTS.Engine = strings.ToLower(*engineName)
	}

	if err := logger.Init(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	if *verbose {
		_ = logger.SetLevel("debug")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := flag.Args()
	cmd := "say"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "say":
		err = cmdSay(ctx, cfg, *outPath, args)
	case "history":
		err = cmdHistory(ctx, cfg, args)
	default:
		printUsage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// loadConfig 读取配置文件；未显式指定且默认文件不存在时使用默认配置。
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, err
}

func cmdSay(ctx context.Context, cfg *config.Config, outPath string, args []string) error {
	text := strings.Join(args, " ")
	if text == "-" || (text == "" && cfg.Speech.DefaultText == "" && !isTerminal(os.Stdin)) {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			return fmt.Errorf("读取标准输入失败: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		text = cfg.Speech.DefaultText
	}

	engine, err := tts.New(cfg.TTS)
	if err != nil {
		return fmt.Errorf("创建合成引擎失败: %w", err)
	}

	sink, err := openSink(engine, cfg.Audio, outPath)
	if err != nil {
		return err
	}

	opts := []speech.Option{
		speech.WithEngine(engine),
		speech.WithSink(sink),
		speech.WithTimeout(time.Duration(cfg.Speech.TimeoutSec) * time.Second),
		speech.WithText(text),
	}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.DBPath, cfg.History.Keep)
		if err != nil {
			logger.Warnf("[main] 朗读历史不可用: %v", err)
		} else {
			defer store.Close()
			opts = append(opts, speech.WithHistory(store))
		}
	}

	vm := speech.NewTextSpeechViewModel(opts...)
	defer vm.Close()

	logger.Infof("[main] 使用引擎 %s 朗读 %d 个字符", tts.NameOf(engine), len([]rune(strings.TrimSpace(text))))
	if err := vm.SpeechContext(ctx); err != nil {
		return err
	}
	if w, ok := sink.(*audio.WAVWriter); ok {
		fmt.Println(w.LastPath())
	}
	return nil
}

// openSink 创建音频输出端；失败时释放已创建的引擎（sherpa 持有模型内存）。
func openSink(engine tts.Engine, cfg config.AudioConfig, outPath string) (audio.Sink, error) {
	sink, err := newSink(cfg, outPath)
	if err != nil {
		if c, ok := engine.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil {
				logger.Warnf("[main] 关闭合成引擎失败: %v", cerr)
			}
		}
		return nil, err
	}
	return sink, nil
}

func newSink(cfg config.AudioConfig, outPath string) (audio.Sink, error) {
	if outPath != "" {
		return audio.NewWAVFile(outPath)
	}
	switch cfg.Output {
	case "speaker":
		p, err := audio.NewPlayer(cfg.Channels)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "wav":
		return audio.NewWAVWriter(cfg.WAVDir)
	case "discard":
		return audio.Discard, nil
	default:
		return nil, fmt.Errorf("不支持的音频输出: %q", cfg.Output)
	}
}

func cmdHistory(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	n := fs.Int("n", 20, "显示的记录数")
	_ = fs.Parse(args)

	store, err := history.Open(cfg.History.DBPath, 0)
	if err != nil {
		return err
	}
	defer store.Close()

	items, err := store.Recent(ctx, *n)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Printf("暂无朗读记录 (%s)\n", store.Path())
		return nil
	}
	for _, u := range items {
		status := "ok"
		if u.Error != "" {
			status = "error: " + u.Error
		}
		fmt.Printf("%s  %-7s %6.1fs  %s  [%s]\n",
			u.CreatedAt.Format("2006-01-02 15:04:05"), u.Engine, u.Duration.Seconds(), u.Text, status)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return true
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `TextSpeaker - 文本朗读

用法:
  textspeaker [-config 路径] [-engine 名称] [-out 文件.wav] [-v] say <文本...>
  textspeaker say -              从标准输入读取文本
  textspeaker history [-n 条数]  查看最近的朗读记录

参数:`)
	flag.PrintDefaults()
}
