package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Parley/internal/api/config"
	"Parley/internal/api/middleware"
	"Parley/internal/pkg/logger"
)

func SetupRouter(group *HandlersGroup, cfg *config.Config) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	logger.SetupGin(r, cfg.Log)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    200,
				"message": "pong",
				"data":    gin.H{"sessions": group.Hub.Len()},
			})
		})

		authGroup := apiGroup.Group("/auth")
		{
			authGroup.GET("/login", group.AuthHandler.LoginURL)
			authGroup.POST("/callback", group.AuthHandler.Callback)
			authGroup.POST("/logout", middleware.AuthMiddleware(group.Hub), group.AuthHandler.Logout)
		}

		chatGroup := apiGroup.Group("/chat")
		{
			// WebSocket 自行从 query 中鉴权
			chatGroup.GET("/ws", group.WSHandler.Connect)

			sessionGroup := chatGroup.Group("")
			sessionGroup.Use(middleware.AuthMiddleware(group.Hub))
			{
				sessionGroup.GET("/state", group.ChatHandler.State)
				sessionGroup.POST("/select", group.ChatHandler.Select)
				sessionGroup.POST("/messages", group.ChatHandler.SendMessage)
				sessionGroup.PUT("/messages/:message_id", group.ChatHandler.EditMessage)
				sessionGroup.DELETE("/messages/:message_id", group.ChatHandler.DeleteMessage)
			}
		}
	}

	return r
}
