package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestActorRoundTrip 测试 actor 身份的写入与读取
func TestActorRoundTrip(t *testing.T) {
	actor := Actor{UserID: "user-42", Roles: []string{"admin", "operator"}}
	ctx := WithActor(context.Background(), actor)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-42", got.UserID)
	assert.Equal(t, []string{"admin", "operator"}, got.Roles)
}

// TestFromContext_Absent 测试无身份的上下文
func TestFromContext_Absent(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}
