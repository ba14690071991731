package handler

import (
	"github.com/gin-gonic/gin"

	"Parley/internal/pkg/consts"
	"Parley/internal/service"
)

// controllerOf AuthMiddleware 注入的会话 Controller
func controllerOf(c *gin.Context) (*service.Controller, bool) {
	v, ok := c.Get(consts.ControllerKey)
	if !ok {
		return nil, false
	}
	ctrl, ok := v.(*service.Controller)
	return ctrl, ok
}
