package identity

import "context"

// Actor 经过网关校验的调用者身份
// 本层只透传，不做再次校验
type Actor struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles,omitempty"`
}

type contextKey struct{}

// WithActor 将身份写入上下文
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// FromContext 从上下文提取身份
// 第二个返回值表示上下文中是否存在身份
func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(Actor)
	return actor, ok
}
