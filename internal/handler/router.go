package handler

import (
	"walletsystem/internal/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, tokens *auth.TokenManager, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// 注册中间件
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	authRequired := AuthMiddleware(tokens)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 用户相关
		user := api.Group("/user")
		{
			user.POST("/signup", h.Signup)
			user.POST("/signin", h.Signin)
			user.GET("/bulk", h.BulkUsers)
			user.PUT("", authRequired, h.UpdateProfile)
		}

		// 账户相关，均需登录
		account := api.Group("/account", authRequired)
		{
			account.GET("/balance", h.GetBalance)
			account.POST("/transfer", h.Transfer)
			account.POST("/deposit", h.Deposit)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
