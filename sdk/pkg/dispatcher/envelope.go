package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	jxtjson "github.com/ChenBigdata421/jxt-consistency/sdk/pkg/json"
)

// Envelope 统一事件包络结构（传输与持久化形态）
// 一经生产不可变更
type Envelope struct {
	EventID         string             `json:"eventId"`                 // 事件ID（全局唯一，幂等键的组成部分）
	EventType       string             `json:"eventType"`               // 事件类型（必填，决定路由到哪个处理器）
	ProducerService string             `json:"producerService"`         // 生产方服务名
	PartitionKey    string             `json:"partitionKey"`            // 分区键（必填，决定顺序处理范围）
	Payload         jxtjson.RawMessage `json:"payload"`                 // 业务负载（透明传递）
	ProducedAt      time.Time          `json:"producedAt"`              // 生产时间
	CorrelationID   string             `json:"correlationId,omitempty"` // 关联ID（可选，跨服务链路关联）
}

// NewEnvelope 创建新的事件包络
// 用于需要自定义 EventID 的场景（例如：使用外部生成的 UUID）
func NewEnvelope(eventID, eventType, producerService, partitionKey string, payload []byte) *Envelope {
	return &Envelope{
		EventID:         eventID,
		EventType:       eventType,
		ProducerService: producerService,
		PartitionKey:    partitionKey,
		Payload:         jxtjson.RawMessage(payload),
		ProducedAt:      time.Now(),
	}
}

// NewEnvelopeWithAutoID 创建新的事件包络（自动生成 EventID）
// EventID 使用 UUID v7（时间排序的 UUID，数据库主键友好）
func NewEnvelopeWithAutoID(eventType, producerService, partitionKey string, payload []byte) *Envelope {
	eventID, err := uuid.NewV7()
	if err != nil {
		// NewV7 理论上不会失败（除非系统时钟异常），回退到 UUID v4
		eventID = uuid.New()
	}
	return NewEnvelope(eventID.String(), eventType, producerService, partitionKey, payload)
}

// Validate 校验包络字段
func (e *Envelope) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return errors.New("eventId is required")
	}
	if strings.TrimSpace(e.EventType) == "" {
		return errors.New("eventType is required")
	}
	if strings.TrimSpace(e.PartitionKey) == "" {
		return errors.New("partitionKey is required")
	}
	if len(e.Payload) == 0 {
		return errors.New("payload is required")
	}

	if err := validatePartitionKey(e.PartitionKey); err != nil {
		return fmt.Errorf("invalid partitionKey: %w", err)
	}
	return nil
}

// ToBytes 序列化为字节数组
func (e *Envelope) ToBytes() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return jxtjson.Marshal(e)
}

// FromBytes 从字节数组反序列化
func FromBytes(data []byte) (*Envelope, error) {
	var env Envelope
	if err := jxtjson.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	return &env, nil
}

// validatePartitionKey 校验分区键格式
func validatePartitionKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("partitionKey cannot be empty")
	}
	if len(key) > 256 {
		return errors.New("partitionKey too long (max 256 characters)")
	}

	// 允许的字符：A-Z a-z 0-9 : _ - . /
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == ':' || r == '_' || r == '-' || r == '.' || r == '/':
		default:
			return fmt.Errorf("partitionKey contains invalid character: %c", r)
		}
	}
	return nil
}
