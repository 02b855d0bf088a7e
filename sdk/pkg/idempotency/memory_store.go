package idempotency

import (
	"context"
	"sync"
	"time"
)

// memoryStore 内存持久层实现（用于测试和开发）
type memoryStore struct {
	mu      sync.RWMutex
	records map[string]*ProcessedRecord
}

// NewMemoryStore 创建内存持久层
func NewMemoryStore() Store {
	return &memoryStore{
		records: make(map[string]*ProcessedRecord),
	}
}

func (s *memoryStore) Insert(ctx context.Context, record *ProcessedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 幂等写：键已存在视为成功
	if _, ok := s.records[record.IdempotencyKey]; ok {
		return nil
	}
	cp := *record
	s.records[record.IdempotencyKey] = &cp
	return nil
}

func (s *memoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[key]
	return ok, nil
}

func (s *memoryStore) Find(ctx context.Context, key string) (*ProcessedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	cp := *record
	return &cp, nil
}

func (s *memoryStore) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, record := range s.records {
		if record.ProcessedAt.Before(before) {
			delete(s.records, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.records)), nil
}
