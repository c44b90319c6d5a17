package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shorturl-service/internal/apperr"
	auth "shorturl-service/pkg/jwt"
)

// ContextUserID gin 上下文中保存当前用户 ID 的键
const ContextUserID = "user_id"

var (
	errMalformedHeader = fmt.Errorf("%w: 认证格式错误", apperr.ErrUnauthorized)
	errInvalidToken    = fmt.Errorf("%w: 无效的认证令牌", apperr.ErrUnauthorized)
)

// ResolveCaller 从 Authorization 头解析调用方。
// 没有认证头时返回空字符串表示匿名；认证头格式错误、令牌无效或过期时返回 apperr.ErrUnauthorized。
func ResolveCaller(tm *auth.TokenManager, authHeader string) (string, error) {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return "", nil
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errMalformedHeader
	}

	claims, err := tm.ValidateToken(parts[1])
	if err != nil {
		return "", errInvalidToken
	}
	return claims.UserID, nil
}

// AuthMiddleware JWT认证中间件，要求请求携带有效令牌
func AuthMiddleware(tm *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := ResolveCaller(tm, c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperr.Message(err)})
			return
		}
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "缺少认证令牌"})
			return
		}

		// 将用户信息存入上下文
		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// CurrentUserID 返回 AuthMiddleware 写入的用户 ID
func CurrentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(ContextUserID)
	return userID, userID != ""
}
