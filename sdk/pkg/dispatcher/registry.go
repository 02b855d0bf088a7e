package dispatcher

import (
	"context"
	"fmt"
	"sync"
)

// EventHandler 事件处理器
// 处理器内的出站调用必须经过 resilience.Protector
type EventHandler func(ctx context.Context, envelope *Envelope) error

// Registry 事件类型到处理器的显式注册表
// 启动时注册，不做运行时动态发现，避免反射式分发
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]EventHandler
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]EventHandler),
	}
}

// Register 注册事件类型的处理器
// 重复注册同一事件类型是配置错误，直接报错
func (r *Registry) Register(eventType string, handler EventHandler) error {
	if eventType == "" {
		return fmt.Errorf("eventType cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[eventType]; exists {
		return fmt.Errorf("handler already registered for event type %q", eventType)
	}
	r.handlers[eventType] = handler
	return nil
}

// MustRegister 注册处理器，失败即 panic（启动期使用）
func (r *Registry) MustRegister(eventType string, handler EventHandler) {
	if err := r.Register(eventType, handler); err != nil {
		panic(err)
	}
}

// Lookup 查找事件类型的处理器
func (r *Registry) Lookup(eventType string) (EventHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[eventType]
	return handler, ok
}

// EventTypes 返回所有已注册的事件类型
func (r *Registry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for eventType := range r.handlers {
		types = append(types, eventType)
	}
	return types
}
