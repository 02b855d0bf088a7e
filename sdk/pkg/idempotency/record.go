package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	jxtjson "github.com/ChenBigdata421/jxt-consistency/sdk/pkg/json"
)

// ProcessedRecord 幂等处理记录领域模型
// 完全数据库无关，不包含任何数据库标签
//
// 一条记录的存在意味着对应的 (事件, 消费方) 处理器已经完整执行过一次。
// 记录只创建一次，除保留窗口清理外不更新不删除。
type ProcessedRecord struct {
	// IdempotencyKey 幂等键（= eventID + 消费方服务名，唯一）
	IdempotencyKey string

	// EventType 事件类型
	EventType string

	// ServiceName 消费方服务名
	ServiceName string

	// ProcessedAt 处理完成时间
	ProcessedAt time.Time

	// PayloadDigest 负载摘要（sha256，审计用）
	PayloadDigest string

	// EventData 原始负载（透传，审计/重放用）
	EventData jxtjson.RawMessage
}

// Key 构造幂等键
// 同一事件投递给不同消费方是两个不同的键
func Key(eventID, service string) string {
	return eventID + ":" + service
}

// Digest 计算负载摘要
func Digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
