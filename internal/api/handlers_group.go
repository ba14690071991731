package api

import (
	"Parley/internal/api/handler"
	"Parley/internal/service"
)

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	Hub         *service.Hub
	AuthHandler *handler.AuthHandler
	ChatHandler *handler.ChatHandler
	WSHandler   *handler.WsHandler
}

func NewHandlersGroup(hub *service.Hub) *HandlersGroup {
	return &HandlersGroup{
		Hub:         hub,
		AuthHandler: handler.NewAuthHandler(hub),
		ChatHandler: handler.NewChatHandler(),
		WSHandler:   handler.NewWsHandler(hub),
	}
}
