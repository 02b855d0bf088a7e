package json

import (
	jsoniter "github.com/json-iterator/go"
)

// JSON 统一的 jsoniter 配置实例
// 使用 ConfigCompatibleWithStandardLibrary 确保与标准库完全兼容
// 同时获得更高的性能
//
// 所有 jxt-consistency 组件都应该使用这个统一的配置，包括：
// - dispatcher: Envelope 序列化
// - idempotency: ProcessedRecord 负载透传
// - saga: CompensationLog 序列化
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal 序列化对象为 JSON 字节数组
// 兼容标准库 json.Marshal 接口
func Marshal(v interface{}) ([]byte, error) {
	return JSON.Marshal(v)
}

// Unmarshal 从 JSON 字节数组反序列化对象
// 兼容标准库 json.Unmarshal 接口
func Unmarshal(data []byte, v interface{}) error {
	return JSON.Unmarshal(data, v)
}

// MarshalToString 将对象序列化为 JSON 字符串
// 使用 jsoniter 的高性能 API，避免字节数组到字符串的转换
func MarshalToString(v interface{}) (string, error) {
	return JSON.MarshalToString(v)
}

// UnmarshalFromString 从 JSON 字符串反序列化对象
func UnmarshalFromString(str string, v interface{}) error {
	return JSON.UnmarshalFromString(str, v)
}

// RawMessage jsoniter 兼容的 RawMessage 类型
// 与标准库 json.RawMessage 完全兼容
//
// 说明：
//   - RawMessage 是 []byte 的别名
//   - 在 JSON 序列化/反序列化时，RawMessage 会被保留为原始 JSON
//   - 适用于延迟解析或透传 JSON 数据的场景
type RawMessage = jsoniter.RawMessage
