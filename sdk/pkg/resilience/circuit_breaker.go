package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/ChenBigdata421/jxt-consistency/sdk/config"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
	"go.uber.org/zap"
)

// ErrCircuitOpen 熔断器处于 Open 状态时的快速失败错误
// 不会触达目的地，直接返回给调用者
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State 熔断器状态
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	DefaultWindowSize           = 10
	DefaultMinimumSamples       = 10
	DefaultFailureRateThreshold = 0.5
	DefaultOpenDuration         = 30 * time.Second
	DefaultTrialCalls           = 1
)

// CircuitBreaker is a per-destination failure-tracking gate.
// - Closed: calls pass through; outcomes are recorded in a sliding count window
// - Open: calls fail fast with ErrCircuitOpen for OpenDuration
// - HalfOpen: up to TrialCalls trial calls are admitted; any success closes
//   the breaker (window reset), any failure reopens it
//
// Only infrastructure-class failures are recorded as failures; business
// rejections must be recorded as successes by the caller (the destination
// responded, so it is not evidence of unavailability).
type CircuitBreaker struct {
	name string
	cfg  config.BreakerConfig

	mu       sync.Mutex
	state    State
	outcomes []bool // ring of call outcomes, true = failure
	next     int
	filled   int
	openedAt time.Time
	trials   int // trial calls admitted while half-open

	logger *zap.Logger

	// now is overridable so state transitions stay deterministic in tests
	now func() time.Time
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(name string, cfg config.BreakerConfig) *CircuitBreaker {
	// 使用默认值（如果未配置）
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.MinimumSamples <= 0 {
		cfg.MinimumSamples = DefaultMinimumSamples
	}
	if cfg.FailureRateThreshold <= 0 {
		cfg.FailureRateThreshold = DefaultFailureRateThreshold
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = DefaultOpenDuration
	}
	if cfg.TrialCalls <= 0 {
		cfg.TrialCalls = DefaultTrialCalls
	}

	return &CircuitBreaker{
		name:     name,
		cfg:      cfg,
		state:    StateClosed,
		outcomes: make([]bool, cfg.WindowSize),
		logger:   logger.Logger,
		now:      time.Now,
	}
}

// Allow reports whether a call may proceed right now.
// Returns ErrCircuitOpen when the breaker refuses the call.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.OpenDuration {
			return ErrCircuitOpen
		}
		// wait duration elapsed, admit trial calls
		cb.toHalfOpen()
		fallthrough
	case StateHalfOpen:
		if cb.trials >= cb.cfg.TrialCalls {
			return ErrCircuitOpen
		}
		cb.trials++
		return nil
	}
	return nil
}

// RecordSuccess 记录一次成功调用
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		// any trial success closes the breaker and resets the window
		cb.toClosed()
	case StateClosed:
		cb.record(false)
	}
}

// RecordFailure 记录一次基础设施类失败调用
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		// any trial failure reopens the breaker
		cb.toOpen()
	case StateClosed:
		cb.record(true)
	}
}

// State 返回当前状态（Open 超时后视为 HalfOpen）
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.OpenDuration {
		return StateHalfOpen
	}
	return cb.state
}

// Stats 熔断器统计信息
type Stats struct {
	Name        string  `json:"name"`
	State       string  `json:"state"`
	Samples     int     `json:"samples"`
	FailureRate float64 `json:"failureRate"`
}

// GetStats 获取统计信息
func (cb *CircuitBreaker) GetStats() *Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return &Stats{
		Name:        cb.name,
		State:       cb.state.String(),
		Samples:     cb.filled,
		FailureRate: cb.failureRate(),
	}
}

// record appends an outcome to the ring and evaluates the opening condition.
// The evaluation runs on every recorded outcome, not only on failures: the
// window can cross MinimumSamples on a success while already carrying enough
// failures to breach the threshold. Caller holds cb.mu.
func (cb *CircuitBreaker) record(failure bool) {
	cb.outcomes[cb.next] = failure
	cb.next = (cb.next + 1) % len(cb.outcomes)
	if cb.filled < len(cb.outcomes) {
		cb.filled++
	}
	if cb.filled >= cb.cfg.MinimumSamples && cb.failureRate() >= cb.cfg.FailureRateThreshold {
		cb.toOpen()
	}
}

// failureRate over the filled part of the window. Caller holds cb.mu.
func (cb *CircuitBreaker) failureRate() float64 {
	if cb.filled == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < cb.filled; i++ {
		if cb.outcomes[i] {
			failures++
		}
	}
	return float64(failures) / float64(cb.filled)
}

func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.trials = 0
	cb.logger.Warn("Circuit breaker opened",
		zap.String("breaker", cb.name),
		zap.Float64("failureRate", cb.failureRate()),
		zap.Int("samples", cb.filled))
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.state = StateHalfOpen
	cb.trials = 0
	cb.logger.Info("Circuit breaker half-open, admitting trial calls",
		zap.String("breaker", cb.name),
		zap.Int("trialCalls", cb.cfg.TrialCalls))
}

func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.trials = 0
	cb.filled = 0
	cb.next = 0
	for i := range cb.outcomes {
		cb.outcomes[i] = false
	}
	cb.logger.Info("Circuit breaker closed", zap.String("breaker", cb.name))
}
