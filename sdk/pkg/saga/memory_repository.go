package saga

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memoryRepository 基于内存的仓储实现，用于测试与单机场景
type memoryRepository struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewMemoryRepository 创建内存仓储
func NewMemoryRepository() Repository {
	return &memoryRepository{
		instances: make(map[string]*Instance),
	}
}

func (r *memoryRepository) Create(ctx context.Context, instance *Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[instance.SagaID]; exists {
		return fmt.Errorf("saga %s already exists", instance.SagaID)
	}
	r.instances[instance.SagaID] = cloneInstance(instance)
	return nil
}

func (r *memoryRepository) FindByID(ctx context.Context, sagaID string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.instances[sagaID]
	if !ok {
		return nil, nil
	}
	return cloneInstance(stored), nil
}

func (r *memoryRepository) UpdateCAS(ctx context.Context, instance *Instance, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.instances[instance.SagaID]
	if !ok {
		return fmt.Errorf("saga %s not found", instance.SagaID)
	}
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}

	instance.Version = expectedVersion + 1
	instance.UpdatedAt = time.Now()
	r.instances[instance.SagaID] = cloneInstance(instance)
	return nil
}

func (r *memoryRepository) FindActive(ctx context.Context, limit int) ([]*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*Instance
	for _, stored := range r.instances {
		if stored.IsTerminal() {
			continue
		}
		active = append(active, cloneInstance(stored))
		if limit > 0 && len(active) >= limit {
			break
		}
	}
	return active, nil
}

func cloneInstance(src *Instance) *Instance {
	dst := *src
	if src.CompensationLog != nil {
		dst.CompensationLog = make([]CompensationEntry, len(src.CompensationLog))
		copy(dst.CompensationLog, src.CompensationLog)
	}
	if src.Payload != nil {
		dst.Payload = make([]byte, len(src.Payload))
		copy(dst.Payload, src.Payload)
	}
	return &dst
}
