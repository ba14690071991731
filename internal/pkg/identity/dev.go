package identity

import (
	"context"
	"net/url"
	"strings"

	"Parley/internal/model"
)

// DevProvider 本地开发用, 凭据格式 "id" 或 "id:显示名", 不做任何校验
type DevProvider struct {
	BaseURL string
}

func NewDevProvider() *DevProvider {
	return &DevProvider{BaseURL: "/chatregister"}
}

func (p *DevProvider) Name() string { return "dev" }

func (p *DevProvider) AuthCodeURL(state string) string {
	return p.BaseURL + "?state=" + url.QueryEscape(state)
}

func (p *DevProvider) SignIn(_ context.Context, credential string) (*model.Identity, error) {
	id, name, _ := strings.Cut(strings.TrimSpace(credential), ":")
	if id == "" {
		return nil, ErrCredentialRejected
	}
	if name == "" {
		name = id
	}
	return &model.Identity{
		ID:          id,
		DisplayName: name,
		Email:       id + "@dev.local",
	}, nil
}
