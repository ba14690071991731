package handler

import (
	log "log/slog"

	"github.com/gin-gonic/gin"

	"Parley/internal/api/dto"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/response"
	"Parley/internal/pkg/security"
	"Parley/internal/service"
)

type AuthHandler struct {
	hub *service.Hub
}

func NewAuthHandler(hub *service.Hub) *AuthHandler {
	return &AuthHandler{hub: hub}
}

// LoginURL 返回身份提供方的登录地址
func (s *AuthHandler) LoginURL(c *gin.Context) {
	state, err := security.GenerateState()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.LoginURLResp{
		URL:   s.hub.Provider().AuthCodeURL(state),
		State: state,
	})
}

// Callback 用授权码完成登录, 为当前标签页创建会话
func (s *AuthHandler) Callback(c *gin.Context) {
	var req dto.CallbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := security.ValidateState(req.State); err != nil {
		log.WarnContext(c.Request.Context(), "oauth state rejected", "err", err)
		response.Error(c, service.ErrSignInFailed)
		return
	}

	ctx := c.Request.Context()
	sessionID, ctrl := s.hub.Create()
	ident, err := ctrl.SignIn(ctx, req.Code)
	if err != nil {
		_ = s.hub.Remove(ctx, sessionID)
		response.Error(c, err)
		return
	}

	token, err := security.GenerateToken(sessionID, ident.ID)
	if err != nil {
		_ = s.hub.Remove(ctx, sessionID)
		response.Error(c, err)
		return
	}
	response.Success(c, dto.CallbackResp{Token: token, Identity: ident})
}

// Logout 登出并销毁会话
func (s *AuthHandler) Logout(c *gin.Context) {
	if err := s.hub.Remove(c.Request.Context(), c.GetString(consts.SessionIDKey)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
