package identity

import (
	"context"
	"errors"

	"Parley/internal/model"
)

var ErrCredentialRejected = errors.New("credential rejected by identity provider")

// Provider 外部联合身份提供方. 交互式登录分两步: 浏览器打开 AuthCodeURL,
// 回调拿到的凭据交给 SignIn 换取身份
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	SignIn(ctx context.Context, credential string) (*model.Identity, error)
}
