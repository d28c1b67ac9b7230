package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/iabetor/textspeaker/internal/logger"
)

// FallbackEngine 按优先级依次尝试多个合成引擎。
// 失败的引擎在 recoveryInterval 内被跳过，之后会被重新尝试；
// 如果所有引擎都在冷却中，仍按顺序全部尝试一遍。
type FallbackEngine struct {
	engines          []Engine
	recoveryInterval time.Duration
	now              func() time.Time

	mu       sync.Mutex
	failedAt map[int]time.Time
}

// NewFallbackEngine 创建兜底引擎，engines 至少包含一个引擎。
func NewFallbackEngine(recoveryInterval time.Duration, engines ...Engine) (*FallbackEngine, error) {
	if len(engines) == 0 {
		return nil, fmt.Errorf("[tts] FallbackEngine 至少需要一个引擎")
	}
	if recoveryInterval <= 0 {
		recoveryInterval = 5 * time.Minute
	}

	names := make([]string, len(engines))
	for i, e := range engines {
		names[i] = NameOf(e)
	}
	logger.Infof("[tts] Fallback 引擎已初始化: %s", strings.Join(names, " -> "))

	return &FallbackEngine{
		engines:          engines,
		recoveryInterval: recoveryInterval,
		now:              time.Now,
		failedAt:         make(map[int]time.Time),
	}, nil
}

// Name 返回当前首选（未在冷却中）的引擎名称。
func (f *FallbackEngine) Name() string {
	order := f.order()
	return NameOf(f.engines[order[0]])
}

// Synthesize 依次尝试各引擎，返回第一个成功的结果。
func (f *FallbackEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	var errs []error
	for _, i := range f.order() {
		engine := f.engines[i]
		samples, rate, err := engine.Synthesize(ctx, text)
		if err == nil {
			f.markRecovered(i)
			return samples, rate, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}

		logger.Warnf("[tts] 引擎 %s 合成失败，尝试下一个: %v", NameOf(engine), err)
		f.markFailed(i)
		errs = append(errs, fmt.Errorf("%s: %w", NameOf(engine), err))
	}
	return nil, 0, fmt.Errorf("[tts] 所有引擎均失败: %w", errors.Join(errs...))
}

// Close 关闭实现了 io.Closer 的子引擎。
func (f *FallbackEngine) Close() error {
	var errs []error
	for _, e := range f.engines {
		if c, ok := e.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// order 返回本次尝试的引擎下标：可用引擎在前，冷却中的引擎在后。
func (f *FallbackEngine) order() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	ready := make([]int, 0, len(f.engines))
	var cooling []int
	for i := range f.engines {
		if at, ok := f.failedAt[i]; ok && now.Sub(at) < f.recoveryInterval {
			cooling = append(cooling, i)
			continue
		}
		ready = append(ready, i)
	}
	return append(ready, cooling...)
}

func (f *FallbackEngine) markFailed(i int) {
	f.mu.Lock()
	f.failedAt[i] = f.now()
	f.mu.Unlock()
}

func (f *FallbackEngine) markRecovered(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.failedAt[i]; ok {
		delete(f.failedAt, i)
		logger.Infof("[tts] 引擎 %s 已恢复", NameOf(f.engines[i]))
	}
}
