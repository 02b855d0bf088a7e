package saga

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Action 步骤的正向操作或补偿操作
// 实现方必须保证幂等：同一实例上的同一动作可能被重复调用
type Action func(ctx context.Context, instance *Instance) error

// StepDefinition saga 步骤定义
type StepDefinition struct {
	// Index 步骤下标，同一 saga 类型内从 0 连续递增
	Index int

	// Name 步骤名称（用于日志与补偿日志条目）
	Name string

	// Forward 正向操作
	Forward Action

	// Compensate 补偿操作，撤销 Forward 的效果
	// 允许为 nil，表示该步骤无需补偿（只读步骤）
	Compensate Action

	// Timeout 单次调用超时，0 使用编排器默认值
	Timeout time.Duration

	// MaxRetries 瞬时失败的最大重试次数，0 使用编排器默认值
	MaxRetries int
}

// Definition saga 类型定义：一个静态的有序步骤序列
type Definition struct {
	SagaType string
	Steps    []StepDefinition
}

// Validate 校验步骤序列的完整性
func (d *Definition) Validate() error {
	if d.SagaType == "" {
		return fmt.Errorf("saga type cannot be empty")
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("saga %s has no steps", d.SagaType)
	}
	for i, step := range d.Steps {
		if step.Index != i {
			return fmt.Errorf("saga %s: step indexes must be contiguous ascending, got %d at position %d", d.SagaType, step.Index, i)
		}
		if step.Name == "" {
			return fmt.Errorf("saga %s: step %d has no name", d.SagaType, i)
		}
		if step.Forward == nil {
			return fmt.Errorf("saga %s: step %s has no forward action", d.SagaType, step.Name)
		}
	}
	return nil
}

// DefinitionRegistry saga 类型注册表
// 步骤序列在运行前静态注册，执行期间不允许变更
type DefinitionRegistry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
}

// NewDefinitionRegistry 创建注册表
func NewDefinitionRegistry() *DefinitionRegistry {
	return &DefinitionRegistry{
		definitions: make(map[string]*Definition),
	}
}

// Register 注册 saga 类型定义
func (r *DefinitionRegistry) Register(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[def.SagaType]; exists {
		return fmt.Errorf("saga type %s already registered", def.SagaType)
	}
	r.definitions[def.SagaType] = def
	return nil
}

// MustRegister 注册 saga 类型定义，失败时 panic
func (r *DefinitionRegistry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Lookup 查找 saga 类型定义
func (r *DefinitionRegistry) Lookup(sagaType string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[sagaType]
	return def, ok
}
