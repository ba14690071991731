package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	Issuer           = "Parley"
	StateExpiration  = 10 * time.Minute
	stateAudience    = "parley-oauth-state"
	sessionAudience  = "parley-session"
	defaultJWTSecret = "parley-dev-secret"
)

// SessionClaims 会话 Token 中的业务信息, 一个浏览器标签页一个会话
type SessionClaims struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	jwt.RegisteredClaims
}

// StateClaims 登录弹窗往返携带的 state, 防止伪造回调
type StateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}
