package gorm

import (
	"database/sql/driver"
	"fmt"
	"time"

	jxtjson "github.com/ChenBigdata421/jxt-consistency/sdk/pkg/json"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/saga"
)

// JSONColumn 自定义 JSON 列类型
// 通过实现 driver.Valuer 接口，确保以 string 形式写入（pgx 会将 string 正确识别为 JSON）
// 通过实现 sql.Scanner 接口，确保从数据库读取时正确还原为 []byte
type JSONColumn []byte

// Value 实现 driver.Valuer 接口
func (j JSONColumn) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return string(j), nil
}

// Scan 实现 sql.Scanner 接口
func (j *JSONColumn) Scan(value interface{}) error {
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
		return fmt.Errorf("JSONColumn.Scan: unsupported type %T", value)
	}
}

// SagaInstanceModel GORM 数据库模型
// 包含 GORM 标签，用于数据库映射
type SagaInstanceModel struct {
	// SagaID 实例唯一标识
	SagaID string `gorm:"column:saga_id;type:varchar(64);primary_key;comment:实例ID"`

	// SagaType saga 类型
	SagaType string `gorm:"column:saga_type;type:varchar(100);not null;index:idx_saga_type;comment:saga类型"`

	// Status 实例状态
	Status string `gorm:"column:status;type:varchar(20);not null;index:idx_status;comment:实例状态"`

	// CurrentStepIndex 下一个要执行的步骤下标
	CurrentStepIndex int `gorm:"column:current_step_index;not null;comment:当前步骤下标"`

	// Version 乐观并发版本号
	Version int64 `gorm:"column:version;not null;comment:版本号"`

	// CompensationLog 补偿日志（JSON 序列化）
	CompensationLog JSONColumn `gorm:"column:compensation_log;type:jsonb;comment:补偿日志"`

	// Payload saga 输入负载
	Payload JSONColumn `gorm:"column:payload;type:jsonb;comment:输入负载"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"column:created_at;not null;comment:创建时间"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `gorm:"column:updated_at;not null;index:idx_updated_at;comment:更新时间"`
}

// TableName 指定表名
func (SagaInstanceModel) TableName() string {
	return "saga_instances"
}

// FromEntity 领域模型转数据库模型
func FromEntity(instance *saga.Instance) (*SagaInstanceModel, error) {
	logBytes, err := jxtjson.Marshal(instance.CompensationLog)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal compensation log: %w", err)
	}
	return &SagaInstanceModel{
		SagaID:           instance.SagaID,
		SagaType:         instance.SagaType,
		Status:           string(instance.Status),
		CurrentStepIndex: instance.CurrentStepIndex,
		Version:          instance.Version,
		CompensationLog:  JSONColumn(logBytes),
		Payload:          JSONColumn(instance.Payload),
		CreatedAt:        instance.CreatedAt,
		UpdatedAt:        instance.UpdatedAt,
	}, nil
}

// ToEntity 数据库模型转领域模型
func (m *SagaInstanceModel) ToEntity() (*saga.Instance, error) {
	var log []saga.CompensationEntry
	if len(m.CompensationLog) > 0 {
		if err := jxtjson.Unmarshal(m.CompensationLog, &log); err != nil {
			return nil, fmt.Errorf("failed to unmarshal compensation log for saga %s: %w", m.SagaID, err)
		}
	}
	return &saga.Instance{
		SagaID:           m.SagaID,
		SagaType:         m.SagaType,
		Status:           saga.Status(m.Status),
		CurrentStepIndex: m.CurrentStepIndex,
		Version:          m.Version,
		CompensationLog:  log,
		Payload:          jxtjson.RawMessage(m.Payload),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}
