package middleware

import (
	"context"
	log "log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/response"
	"Parley/internal/pkg/security"
	"Parley/internal/service"
)

// AuthMiddleware 校验会话 Token, 并把会话对应的 Controller 注入 Context
func AuthMiddleware(hub *service.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			response.Fail(c, response.Unauthorized, "Token 缺失或格式错误")
			c.Abort()
			return
		}

		if !Authenticate(c, hub, strings.TrimPrefix(authHeader, "Bearer ")) {
			c.Abort()
			return
		}
		c.Next()
	}
}

// Authenticate 校验 Token 并注入会话信息, 失败时已写出响应
func Authenticate(c *gin.Context, hub *service.Hub, tokenString string) bool {
	claims, err := security.ValidateToken(tokenString)
	if err != nil {
		log.WarnContext(c.Request.Context(), "token rejected", "err", err)
		response.Fail(c, response.Unauthorized, "Token 无效或已过期")
		return false
	}

	ctrl, err := hub.Get(claims.SessionID)
	if err != nil {
		response.Error(c, err)
		return false
	}

	c.Set(consts.SessionIDKey, claims.SessionID)
	c.Set(consts.UserIDKey, claims.UserID)
	c.Set(consts.ControllerKey, ctrl)

	ctx := context.WithValue(c.Request.Context(), consts.UserIDKey, claims.UserID)
	c.Request = c.Request.WithContext(ctx)
	return true
}
