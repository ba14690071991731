package handler

import (
	"github.com/gin-gonic/gin"

	"Parley/internal/api/dto"
	"Parley/internal/pkg/response"
	"Parley/internal/service"
)

type ChatHandler struct{}

func NewChatHandler() *ChatHandler {
	return &ChatHandler{}
}

// State 当前视图快照
func (s *ChatHandler) State(c *gin.Context) {
	ctrl, ok := controllerOf(c)
	if !ok {
		response.Error(c, service.ErrSessionNotFound)
		return
	}
	response.Success(c, ctrl.State())
}

// Select 打开会话, 返回打开后的视图
func (s *ChatHandler) Select(c *gin.Context) {
	ctrl, ok := controllerOf(c)
	if !ok {
		response.Error(c, service.ErrSessionNotFound)
		return
	}
	var req dto.SelectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := ctrl.Select(c.Request.Context(), req.CounterpartID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ctrl.State())
}

func (s *ChatHandler) SendMessage(c *gin.Context) {
	ctrl, ok := controllerOf(c)
	if !ok {
		response.Error(c, service.ErrSessionNotFound)
		return
	}
	var req dto.MessageBodyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	msg, err := ctrl.Send(c.Request.Context(), req.Body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msg)
}

func (s *ChatHandler) EditMessage(c *gin.Context) {
	ctrl, ok := controllerOf(c)
	if !ok {
		response.Error(c, service.ErrSessionNotFound)
		return
	}
	var req dto.MessageBodyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := ctrl.Edit(c.Request.Context(), c.Param("message_id"), req.Body); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *ChatHandler) DeleteMessage(c *gin.Context) {
	ctrl, ok := controllerOf(c)
	if !ok {
		response.Error(c, service.ErrSessionNotFound)
		return
	}
	if err := ctrl.Delete(c.Request.Context(), c.Param("message_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
