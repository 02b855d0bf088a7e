package gorm

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/idempotency"
	jxtjson "github.com/ChenBigdata421/jxt-consistency/sdk/pkg/json"
)

// JSONPayload 自定义 JSON 负载类型
// 通过实现 driver.Valuer 接口，确保以 string 形式写入（pgx 会将 string 正确识别为 JSON）
// 通过实现 sql.Scanner 接口，确保从数据库读取时正确还原为 []byte
type JSONPayload []byte

// Value 实现 driver.Valuer 接口
func (j JSONPayload) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return string(j), nil
}

// Scan 实现 sql.Scanner 接口
func (j *JSONPayload) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = make([]byte, len(v))
		copy(*j, v)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return fmt.Errorf("JSONPayload.Scan: unsupported type %T", value)
	}
}

// ProcessedEventModel GORM 数据库模型
// 包含 GORM 标签，用于数据库映射
type ProcessedEventModel struct {
	// IdempotencyKey 幂等键（eventID + 消费方服务名）
	IdempotencyKey string `gorm:"column:idempotency_key;type:varchar(320);primary_key;comment:幂等键"`

	// EventType 事件类型
	EventType string `gorm:"column:event_type;type:varchar(100);not null;comment:事件类型"`

	// ServiceName 消费方服务名
	ServiceName string `gorm:"column:service_name;type:varchar(100);not null;index:idx_service;comment:消费方服务名"`

	// ProcessedAt 处理完成时间
	ProcessedAt time.Time `gorm:"column:processed_at;not null;index:idx_processed_at;comment:处理完成时间"`

	// PayloadDigest 负载摘要
	PayloadDigest string `gorm:"column:payload_digest;type:char(64);not null;comment:负载摘要"`

	// EventData 原始负载（审计/重放）
	EventData JSONPayload `gorm:"column:event_data;type:jsonb;comment:原始负载"`
}

// TableName 指定表名
func (ProcessedEventModel) TableName() string {
	return "processed_events"
}

// FromEntity 领域模型转数据库模型
func FromEntity(record *idempotency.ProcessedRecord) *ProcessedEventModel {
	return &ProcessedEventModel{
		IdempotencyKey: record.IdempotencyKey,
		EventType:      record.EventType,
		ServiceName:    record.ServiceName,
		ProcessedAt:    record.ProcessedAt,
		PayloadDigest:  record.PayloadDigest,
		EventData:      JSONPayload(record.EventData),
	}
}

// ToEntity 数据库模型转领域模型
func (m *ProcessedEventModel) ToEntity() *idempotency.ProcessedRecord {
	return &idempotency.ProcessedRecord{
		IdempotencyKey: m.IdempotencyKey,
		EventType:      m.EventType,
		ServiceName:    m.ServiceName,
		ProcessedAt:    m.ProcessedAt,
		PayloadDigest:  m.PayloadDigest,
		EventData:      jxtjson.RawMessage(m.EventData),
	}
}
