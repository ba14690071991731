package security

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	mu        sync.RWMutex
	jwtSecret = []byte(defaultJWTSecret)
	jwtTTL    = 24 * time.Hour
)

// Init 设置签名密钥与会话有效期, 空值保持默认
func Init(secret string, ttl time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if ttl > 0 {
		jwtTTL = ttl
	}
}

func settings() ([]byte, time.Duration) {
	mu.RLock()
	defer mu.RUnlock()
	return jwtSecret, jwtTTL
}

// GenerateToken 为会话签发 Token
func GenerateToken(sessionID, userID string) (string, error) {
	secret, ttl := settings()
	now := time.Now()

	claims := &SessionClaims{
		SessionID: sessionID,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{sessionAudience},
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("签名 Token 失败: %w", err)
	}
	return tokenString, nil
}

// ValidateToken 验证会话 Token 并解析出 Claims
func ValidateToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := parse(tokenString, claims, sessionAudience); err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, errors.New("token 缺少会话信息")
	}
	return claims, nil
}

// GenerateState 生成短期有效的登录 state
func GenerateState() (string, error) {
	secret, _ := settings()
	now := time.Now()

	claims := &StateClaims{
		Nonce: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(StateExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{stateAudience},
		},
	}

	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("签名 state 失败: %w", err)
	}
	return state, nil
}

// ValidateState 校验回调带回的 state
func ValidateState(state string) error {
	return parse(state, &StateClaims{}, stateAudience)
}

func parse(tokenString string, claims jwt.Claims, audience string) error {
	secret, _ := settings()
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名方法: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithAudience(audience))
	if err != nil {
		return fmt.Errorf("token 解析失败: %w", err)
	}
	if !token.Valid {
		return errors.New("token 无效或已过期")
	}
	return nil
}
