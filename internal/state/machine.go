package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
)

// 会话状态常量
const (
	StatePending    = "pending"
	StateAuthorized = "authorized"
	StateDenied     = "denied"
	StateExpired    = "expired"
)

// 事件常量
const (
	EventAuthorize = "authorize"
	EventDeny      = "deny"
	EventExpire    = "expire"
)

// IsKnown 是否为合法状态
func IsKnown(s string) bool {
	switch s {
	case StatePending, StateAuthorized, StateDenied, StateExpired:
		return true
	}
	return false
}

// IsTerminal 终态不再接受任何事件
func IsTerminal(s string) bool {
	return s == StateAuthorized || s == StateDenied || s == StateExpired
}

// Machine 连接会话状态机
type Machine struct {
	mu            sync.Mutex
	sessionID     string
	fsm           *fsm.FSM
	onStateChange func(sessionID, from, to string)
}

// NewMachine 从已保存的状态恢复状态机，空状态视为 pending
func NewMachine(sessionID, initialState string, onStateChange func(sessionID, from, to string)) (*Machine, error) {
	if initialState == "" {
		initialState = StatePending
	}
	if !IsKnown(initialState) {
		return nil, fmt.Errorf("unknown session state %q", initialState)
	}

	m := &Machine{
		sessionID:     sessionID,
		onStateChange: onStateChange,
	}

	m.fsm = fsm.NewFSM(
		initialState,
		fsm.Events{
			{Name: EventAuthorize, Src: []string{StatePending}, Dst: StateAuthorized},
			{Name: EventDeny, Src: []string{StatePending}, Dst: StateDenied},
			{Name: EventExpire, Src: []string{StatePending}, Dst: StateExpired},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(m.sessionID, e.Src, e.Dst)
				}
			},
		},
	)

	return m, nil
}

// Current 当前状态
func (m *Machine) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fsm.Current()
}

// Trigger 触发事件
func (m *Machine) Trigger(ctx context.Context, event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}
	return nil
}

// Can 是否可以触发事件
func (m *Machine) Can(event string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fsm.Can(event)
}
