package speech

import (
	"sync"

	"github.com/iabetor/textspeaker/internal/logger"
)

// State 表示视图模型的朗读状态。
type State int

const (
	// StateIdle 空闲，可以开始朗读。
	StateIdle State = iota
	// StateSynthesizing 正在调用合成引擎。
	StateSynthesizing
	// StateSpeaking 正在输出音频。
	StateSpeaking
)

var stateNames = [...]string{
	"Idle",
	"Synthesizing",
	"Speaking",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// StateMachine 管理线程安全的状态转换。
type StateMachine struct {
	mu       sync.RWMutex
	current  State
	onChange func(from, to State)
}

// NewStateMachine 创建初始状态为 Idle 的状态机。
func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateIdle}
}

// SetOnChange 注册状态变化回调。回调在锁外执行。
func (sm *StateMachine) SetOnChange(fn func(from, to State)) {
	sm.mu.Lock()
	sm.onChange = fn
	sm.mu.Unlock()
}

// Current 返回当前状态。
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition 尝试切换状态，只有合法的转换才会生效：
//
//	Idle         → Synthesizing
//	Synthesizing → Speaking
//	任意状态     → Idle（完成、出错或取消）
func (sm *StateMachine) Transition(to State) bool {
	sm.mu.Lock()
	from := sm.current
	if !validTransition(from, to) {
		sm.mu.Unlock()
		logger.Debugf("[speech] 非法转换 %s → %s", from, to)
		return false
	}
	sm.current = to
	fn := sm.onChange
	sm.mu.Unlock()

	if fn != nil && from != to {
		fn(from, to)
	}
	return true
}

// ForceIdle 无条件回到 Idle。
func (sm *StateMachine) ForceIdle() {
	sm.Transition(StateIdle)
}

func validTransition(from, to State) bool {
	if to == StateIdle {
		return true
	}
	switch from {
	case StateIdle:
		return to == StateSynthesizing
	case StateSynthesizing:
		return to == StateSpeaking
	}
	return false
}
