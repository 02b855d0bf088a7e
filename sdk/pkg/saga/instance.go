package saga

import (
	"time"

	"github.com/google/uuid"

	jxtjson "github.com/ChenBigdata421/jxt-consistency/sdk/pkg/json"
)

// Status saga 实例状态
type Status string

const (
	// StatusStarted 已创建，尚未执行任何步骤
	StatusStarted Status = "started"
	// StatusStepInProgress 当前步骤执行中
	StatusStepInProgress Status = "step_in_progress"
	// StatusStepCompleted 当前步骤已完成，等待推进
	StatusStepCompleted Status = "step_completed"
	// StatusCompensating 正向执行失败，补偿进行中
	StatusCompensating Status = "compensating"
	// StatusCompleted 全部步骤成功（终态）
	StatusCompleted Status = "completed"
	// StatusFailed 已失败，补偿完成或等待人工处理（终态）
	StatusFailed Status = "failed"
)

// StepOutcome 补偿日志条目的状态
type StepOutcome string

const (
	// StepOutcomeCompleted 正向步骤已完成，尚未补偿
	StepOutcomeCompleted StepOutcome = "completed"
	// StepOutcomeCompensated 补偿已执行
	StepOutcomeCompensated StepOutcome = "compensated"
	// StepOutcomeUnresolved 补偿重试耗尽或被更早的失败阻塞，等待人工处理
	StepOutcomeUnresolved StepOutcome = "unresolved"
)

// CompensationEntry 补偿日志条目
// 日志只包含 index < currentStepIndex 的步骤（已完成的正向步骤）
type CompensationEntry struct {
	StepIndex     int         `json:"stepIndex"`
	StepName      string      `json:"stepName"`
	Outcome       StepOutcome `json:"outcome"`
	Error         string      `json:"error,omitempty"`
	CompensatedAt *time.Time  `json:"compensatedAt,omitempty"`
}

// Instance saga 实例领域模型
// 只能由编排器在乐观并发控制下变更；Completed 与 Failed 为终态
type Instance struct {
	// SagaID 实例唯一标识
	SagaID string

	// SagaType saga 类型（步骤序列在注册表中按类型静态定义）
	SagaType string

	// Status 实例状态
	Status Status

	// CurrentStepIndex 下一个要执行的步骤下标
	CurrentStepIndex int

	// Version 乐观并发版本号（每次持久化变更递增）
	Version int64

	// CompensationLog 已完成步骤的补偿日志（补偿按下标严格降序执行）
	CompensationLog []CompensationEntry

	// Payload saga 输入负载（透明传递给各步骤）
	Payload jxtjson.RawMessage

	// CreatedAt 创建时间
	CreatedAt time.Time

	// UpdatedAt 更新时间
	UpdatedAt time.Time
}

// NewInstance 创建新的 saga 实例
func NewInstance(sagaType string, payload []byte) *Instance {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	now := time.Now()
	return &Instance{
		SagaID:           id.String(),
		SagaType:         sagaType,
		Status:           StatusStarted,
		CurrentStepIndex: 0,
		Version:          1,
		Payload:          jxtjson.RawMessage(payload),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// IsTerminal 是否处于终态
func (i *Instance) IsTerminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusFailed
}

// completedEntry 返回指定下标的补偿日志条目
func (i *Instance) completedEntry(stepIndex int) *CompensationEntry {
	for idx := range i.CompensationLog {
		if i.CompensationLog[idx].StepIndex == stepIndex {
			return &i.CompensationLog[idx]
		}
	}
	return nil
}

// UnresolvedSteps 返回等待人工处理的补偿条目
func (i *Instance) UnresolvedSteps() []CompensationEntry {
	var unresolved []CompensationEntry
	for _, entry := range i.CompensationLog {
		if entry.Outcome == StepOutcomeUnresolved {
			unresolved = append(unresolved, entry)
		}
	}
	return unresolved
}
