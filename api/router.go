package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/arch-QA-system/api/handler"
	"github.com/fyerfyer/arch-QA-system/api/middleware"
	"github.com/fyerfyer/arch-QA-system/api/model"
)

// SetupRouter 设置API路由
func SetupRouter(sessionHandler *handler.SessionHandler) *gin.Engine {
	if err := model.RegisterValidators(); err != nil {
		middleware.GetLogger().WithError(err).Error("Failed to register validators")
	}

	router := gin.New()

	// 追踪ID需要最先设置，错误处理和日志都会用到
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(Cors())

	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
		router.Use(middleware.ResponseLogger())
	}

	api := router.Group("/api")
	{
		sessions := api.Group("/sessions")
		{
			// 建立会话 - POST /api/sessions
			sessions.POST("", sessionHandler.CreateSession)

			// 会话列表 - GET /api/sessions
			sessions.GET("", sessionHandler.ListSessions)

			// 会话信息 - GET /api/sessions/:id
			sessions.GET("/:id", sessionHandler.GetSession)

			// 提问 - POST /api/sessions/:id/ask
			sessions.POST("/:id/ask", sessionHandler.Ask)

			// 问答历史 - GET /api/sessions/:id/history
			sessions.GET("/:id/history", sessionHandler.History)

			// 删除会话 - DELETE /api/sessions/:id
			sessions.DELETE("/:id", sessionHandler.DeleteSession)
		}

		// 健康检查 - GET /api/health
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
