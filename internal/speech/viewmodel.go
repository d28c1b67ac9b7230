// Package speech 提供文本朗读页面的视图模型。
//
// TextSpeechViewModel 持有待朗读的文本，调用合成引擎并把音频交给输出端。
// 它不依赖任何界面框架，界面或命令行通过属性变化回调观察状态。
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/iabetor/textspeaker/internal/audio"
	"github.com/iabetor/textspeaker/internal/history"
	"github.com/iabetor/textspeaker/internal/logger"
	"github.com/iabetor/textspeaker/internal/tts"
)

const defaultTimeout = 30 * time.Second

// 属性名，传给 SetOnPropertyChanged 注册的回调。
const (
	PropText      = "Text"
	PropState     = "State"
	PropLastError = "LastError"
	PropCanSpeech = "CanSpeech"
)

var (
	// ErrEmptyText 表示没有可朗读的文本。
	ErrEmptyText = errors.New("[speech] 文本为空")
	// ErrBusy 表示上一次朗读尚未结束。
	ErrBusy = errors.New("[speech] 正在朗读")
)

// Recorder 保存朗读记录，由 history.Store 实现。
type Recorder interface {
	Record(ctx context.Context, u *history.Utterance) error
}

// Option 配置 TextSpeechViewModel。
type Option func(*TextSpeechViewModel)

// WithEngine 设置合成引擎。
func WithEngine(e tts.Engine) Option {
	return func(vm *TextSpeechViewModel) { vm.engine = e }
}

// WithSink 设置音频输出端。
func WithSink(s audio.Sink) Option {
	return func(vm *TextSpeechViewModel) { vm.sink = s }
}

// WithHistory 设置朗读记录存储。
func WithHistory(r Recorder) Option {
	return func(vm *TextSpeechViewModel) { vm.recorder = r }
}

// WithTimeout 设置合成的超时时间，播放额外获得音频时长的余量。<= 0 表示使用默认值。
func WithTimeout(d time.Duration) Option {
	return func(vm *TextSpeechViewModel) { vm.timeout = d }
}

// WithText 设置初始文本。
func WithText(text string) Option {
	return func(vm *TextSpeechViewModel) { vm.text = text }
}

// TextSpeechViewModel 是文本朗读页面的视图模型。
// 零值可用：未配置的依赖在第一次使用时填充为静音引擎和丢弃输出。
type TextSpeechViewModel struct {
	once sync.Once

	engine   tts.Engine
	sink     audio.Sink
	recorder Recorder
	timeout  time.Duration
	state    *StateMachine

	mu                sync.Mutex
	text              string
	lastErr           error
	onPropertyChanged func(name string)
}

// NewTextSpeechViewModel 创建视图模型。不传参数时也能正常构造和朗读。
func NewTextSpeechViewModel(opts ...Option) *TextSpeechViewModel {
	vm := &TextSpeechViewModel{}
	for _, opt := range opts {
		opt(vm)
	}
	vm.init()
	return vm
}

func (vm *TextSpeechViewModel) init() {
	vm.once.Do(func() {
		if vm.engine == nil {
			vm.engine = tts.NewSilentEngine()
		}
		if vm.sink == nil {
			vm.sink = audio.Discard
		}
		if vm.timeout <= 0 {
			vm.timeout = defaultTimeout
		}
		vm.state = NewStateMachine()
		vm.state.SetOnChange(func(from, to State) {
			logger.Debugf("[speech] 状态 %s → %s", from, to)
			vm.notify(PropState)
			vm.notify(PropCanSpeech)
		})
	})
}

// Text 返回待朗读的文本。
func (vm *TextSpeechViewModel) Text() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.text
}

// SetText 更新待朗读的文本，值变化时通知 Text 与 CanSpeech。
func (vm *TextSpeechViewModel) SetText(text string) {
	vm.mu.Lock()
	if vm.text == text {
		vm.mu.Unlock()
		return
	}
	vm.text = text
	vm.mu.Unlock()

	vm.notify(PropText)
	vm.notify(PropCanSpeech)
}

// State 返回当前朗读状态。
func (vm *TextSpeechViewModel) State() State {
	vm.init()
	return vm.state.Current()
}

// CanSpeech 报告当前是否可以开始朗读：文本非空且处于空闲状态。
func (vm *TextSpeechViewModel) CanSpeech() bool {
	return strings.TrimSpace(vm.Text()) != "" && vm.State() == StateIdle
}

// LastError 返回最近一次朗读的错误，成功后被清空。
func (vm *TextSpeechViewModel) LastError() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.lastErr
}

// SetOnPropertyChanged 注册属性变化回调，传 nil 取消注册。
func (vm *TextSpeechViewModel) SetOnPropertyChanged(fn func(name string)) {
	vm.mu.Lock()
	vm.onPropertyChanged = fn
	vm.mu.Unlock()
}

// Speech 朗读当前文本。
// 它从不返回错误也不会 panic：错误记录到 LastError 并写入日志。
func (vm *TextSpeechViewModel) Speech() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[speech] 朗读时发生 panic: %v", r)
		}
	}()

	err := vm.SpeechContext(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, ErrEmptyText):
		logger.Debugf("[speech] 没有可朗读的文本")
	case errors.Is(err, ErrBusy):
		logger.Infof("[speech] 上一次朗读尚未结束，忽略本次请求")
	default:
		logger.Warnf("[speech] 朗读失败: %v", err)
	}
}

// SpeechContext 朗读当前文本并返回错误，ctx 取消时中止合成或播放。
func (vm *TextSpeechViewModel) SpeechContext(ctx context.Context) error {
	vm.init()

	text := strings.TrimSpace(vm.Text())
	if text == "" {
		return ErrEmptyText
	}
	if !vm.state.Transition(StateSynthesizing) {
		return ErrBusy
	}
	defer vm.state.ForceIdle()

	u := &history.Utterance{Text: text, Engine: tts.NameOf(vm.engine)}
	err := vm.speak(ctx, text, u)
	if err != nil {
		u.Error = err.Error()
	}
	vm.record(u)
	vm.setLastError(err)
	return err
}

// speak 合成并播放。合成受 vm.timeout 限制；播放的期限是 vm.timeout 加上音频时长，
// 长文本不会因为播放时间超过 timeout 而被截断。
func (vm *TextSpeechViewModel) speak(ctx context.Context, text string, u *history.Utterance) error {
	start := time.Now()
	synthCtx, cancel := context.WithTimeout(ctx, vm.timeout)
	samples, rate, err := vm.synthesize(synthCtx, text)
	cancel()
	if err != nil {
		return err
	}
	// FallbackEngine 的名称在合成后才反映实际使用的引擎
	u.Engine = tts.NameOf(vm.engine)
	u.Samples = len(samples)
	u.SampleRate = rate
	u.Duration = audio.Duration(len(samples), rate)
	logger.Debugf("[speech] 合成完成：%d 个样本，%v，耗时 %v", len(samples), u.Duration, time.Since(start))

	if len(samples) == 0 {
		return nil
	}
	if !vm.state.Transition(StateSpeaking) {
		return ErrBusy
	}
	playCtx, cancel := context.WithTimeout(ctx, vm.timeout+u.Duration)
	defer cancel()
	return vm.play(playCtx, samples, rate)
}

func (vm *TextSpeechViewModel) synthesize(ctx context.Context, text string) (samples []float32, rate int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("[speech] 合成引擎 panic: %v", r)
		}
	}()
	samples, rate, err = vm.engine.Synthesize(ctx, text)
	if err != nil {
		return nil, 0, fmt.Errorf("[speech] 合成失败: %w", err)
	}
	return samples, rate, nil
}

func (vm *TextSpeechViewModel) play(ctx context.Context, samples []float32, rate int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("[speech] 音频输出 panic: %v", r)
		}
	}()
	if err := vm.sink.Play(ctx, samples, rate); err != nil {
		return fmt.Errorf("[speech] 播放失败: %w", err)
	}
	return nil
}

func (vm *TextSpeechViewModel) record(u *history.Utterance) {
	if vm.recorder == nil {
		return
	}
	// 朗读可能因超时结束，记录使用独立的短超时
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := vm.recorder.Record(ctx, u); err != nil {
		logger.Warnf("[speech] 保存朗读记录失败: %v", err)
	}
}

func (vm *TextSpeechViewModel) setLastError(err error) {
	vm.mu.Lock()
	changed := vm.lastErr != nil || err != nil
	vm.lastErr = err
	vm.mu.Unlock()

	if changed {
		vm.notify(PropLastError)
	}
}

func (vm *TextSpeechViewModel) notify(name string) {
	vm.mu.Lock()
	fn := vm.onPropertyChanged
	vm.mu.Unlock()
	if fn != nil {
		fn(name)
	}
}

// Close 释放引擎和输出端中实现了 io.Closer 的资源。
func (vm *TextSpeechViewModel) Close() error {
	vm.init()
	var errs []error
	if c, ok := vm.engine.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := vm.sink.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
