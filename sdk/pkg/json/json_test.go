package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderEvent struct {
	OrderID string `json:"orderId"`
	Amount  int    `json:"amount"`
	Note    string `json:"note,omitempty"`
}

// TestMarshal_StandardLibraryCompatible 测试与标准库一致的序列化行为
func TestMarshal_StandardLibraryCompatible(t *testing.T) {
	data, err := Marshal(orderEvent{OrderID: "order-1001", Amount: 250})
	require.NoError(t, err)
	// omitempty 字段为零值时不输出
	assert.JSONEq(t, `{"orderId":"order-1001","amount":250}`, string(data))

	var decoded orderEvent
	require.NoError(t, Unmarshal(data, &decoded))
	assert.Equal(t, "order-1001", decoded.OrderID)
	assert.Equal(t, 250, decoded.Amount)
	assert.Empty(t, decoded.Note)
}

// TestStringAPI 测试字符串接口（免去字节切片转换）
func TestStringAPI(t *testing.T) {
	str, err := MarshalToString(orderEvent{OrderID: "order-7", Amount: 99, Note: "gift"})
	require.NoError(t, err)

	var decoded orderEvent
	require.NoError(t, UnmarshalFromString(str, &decoded))
	assert.Equal(t, orderEvent{OrderID: "order-7", Amount: 99, Note: "gift"}, decoded)
}

// TestRawMessage_Passthrough 测试 RawMessage 原样透传负载
// 事件负载与 saga 数据以 RawMessage 延迟解析，中转环节不得改写原始 JSON
func TestRawMessage_Passthrough(t *testing.T) {
	type envelope struct {
		EventType string     `json:"eventType"`
		Payload   RawMessage `json:"payload"`
	}

	rawPayload := []byte(`{"orderId":"order-1001","items":[{"sku":"A-1","qty":2}]}`)
	data, err := Marshal(envelope{EventType: "OrderCreated", Payload: rawPayload})
	require.NoError(t, err)

	var decoded envelope
	require.NoError(t, Unmarshal(data, &decoded))
	assert.Equal(t, "OrderCreated", decoded.EventType)
	assert.JSONEq(t, string(rawPayload), string(decoded.Payload))

	// 透传后的负载仍能被下游解析
	var inner struct {
		OrderID string `json:"orderId"`
		Items   []struct {
			SKU string `json:"sku"`
			Qty int    `json:"qty"`
		} `json:"items"`
	}
	require.NoError(t, Unmarshal(decoded.Payload, &inner))
	require.Len(t, inner.Items, 1)
	assert.Equal(t, "A-1", inner.Items[0].SKU)
	assert.Equal(t, 2, inner.Items[0].Qty)
}

// TestRawMessage_NullAndAbsent 测试 RawMessage 的 null 与缺省值
func TestRawMessage_NullAndAbsent(t *testing.T) {
	type record struct {
		Data RawMessage `json:"data,omitempty"`
	}

	var decoded record
	require.NoError(t, UnmarshalFromString(`{"data":null}`, &decoded))
	assert.Equal(t, "null", string(decoded.Data))

	decoded = record{}
	require.NoError(t, UnmarshalFromString(`{}`, &decoded))
	assert.Nil(t, decoded.Data)
}

// TestUnmarshal_InvalidInput 测试非法 JSON 报错而非静默
func TestUnmarshal_InvalidInput(t *testing.T) {
	var decoded orderEvent
	assert.Error(t, Unmarshal([]byte(`{"orderId":`), &decoded))
	assert.Error(t, UnmarshalFromString(`not json`, &decoded))
}

func BenchmarkMarshalEnvelope(b *testing.B) {
	type envelope struct {
		EventType string     `json:"eventType"`
		Payload   RawMessage `json:"payload"`
	}
	env := envelope{EventType: "OrderCreated", Payload: []byte(`{"orderId":"order-1001","amount":250}`)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Marshal(env); err != nil {
			b.Fatal(err)
		}
	}
}
