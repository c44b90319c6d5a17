package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// NewEngine 创建 gin 引擎。trustedProxies 为空时不信任任何代理，ClientIP 只取连接的对端地址，
// 伪造的 X-Forwarded-For 无法绕过按来源的限流
func NewEngine(trustedProxies []string) (*gin.Engine, error) {
	router := gin.New()
	if len(trustedProxies) == 0 {
		trustedProxies = nil
	}
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("无效的可信代理配置: %w", err)
	}
	return router, nil
}

// RegisterRoutes 注册全部路由，auth 为必须登录的中间件
func RegisterRoutes(router *gin.Engine, links *ShortLinkHandler, users *AuthHandler, auth gin.HandlerFunc) {
	router.GET("/health", links.HealthCheck)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.POST("/shorten", links.Shorten)
	router.GET("/:code", links.Redirect)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", users.Login)
		authGroup.POST("/register", users.Register)
	}

	api := router.Group("/api", auth)
	{
		api.GET("/me", users.GetCurrentUser)
	}

	mine := router.Group("/my-urls", auth)
	{
		mine.GET("", links.ListMine)
		mine.GET("/stats", links.Stats)
		mine.PUT("/:id", links.Update)
		mine.DELETE("/:id", links.Delete)
		mine.GET("/:id/qrcode", links.QRCode)
	}
}
