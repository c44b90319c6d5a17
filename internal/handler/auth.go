package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shorturl-service/internal/apperr"
	"shorturl-service/internal/middleware"
	"shorturl-service/internal/model"
	auth "shorturl-service/pkg/jwt"
)

const minPasswordLength = 6

// UserStore 认证处理器依赖的用户存储
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// AttemptChecker 登录前的尝试次数检查
type AttemptChecker interface {
	Check(source, target string) error
}

// AuthHandler 包含认证相关的处理器
type AuthHandler struct {
	errorWriter
	users   UserStore
	tokens  *auth.TokenManager
	limiter AttemptChecker
}

// NewAuthHandler 创建一个新的 AuthHandler，rejectStatus 为登录尝试超限时的状态码
func NewAuthHandler(users UserStore, tokens *auth.TokenManager, limiter AttemptChecker, rejectStatus int) *AuthHandler {
	return &AuthHandler{
		errorWriter: newErrorWriter(rejectStatus),
		users:       users,
		tokens:      tokens,
		limiter:     limiter,
	}
}

// LoginRequest 定义了登录请求的结构体
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"user@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// RegisterRequest 定义了注册请求的结构体
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email" example:"user@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// AuthResponse 定义了认证成功后的响应
type AuthResponse struct {
	Token string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// Login godoc
// @Summary 用户登录
// @Description 使用邮箱和密码获取 JWT 令牌，同一来源的尝试次数受限
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param   account  body   LoginRequest  true  "登录凭据"
// @Success 200 {object} AuthResponse "成功响应"
// @Failure 400 {object} ErrorResponse "邮箱或密码错误"
// @Failure 403 {object} ErrorResponse "账户已被禁用"
// @Failure 429 {object} ErrorResponse "尝试过于频繁"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	// 先限流，再校验凭证
	if err := h.limiter.Check(c.ClientIP(), email); err != nil {
		h.writeError(c, err)
		return
	}

	user, err := h.users.FindByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "邮箱或密码错误"})
			return
		}
		h.writeError(c, err)
		return
	}
	if !user.CheckPassword(password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "邮箱或密码错误"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "账户已被禁用"})
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.users.TouchLastLogin(c.Request.Context(), user.ID, time.Now()); err != nil {
		zap.S().Warnf("更新最近登录时间失败: %v", err)
	}
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// Register godoc
// @Summary 用户注册
// @Description 创建一个新用户并返回 JWT 令牌
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param   account  body   RegisterRequest  true  "注册信息"
// @Success 201 {object} AuthResponse "成功响应"
// @Failure 400 {object} ErrorResponse "请求无效"
// @Failure 409 {object} ErrorResponse "邮箱已被注册"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}
	password := strings.TrimSpace(req.Password)
	if len(password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "密码长度不能少于 6 位"})
		return
	}

	user := model.User{Email: strings.ToLower(strings.TrimSpace(req.Email)), IsActive: true}
	if err := user.SetPassword(password); err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.users.Create(c.Request.Context(), &user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "邮箱已被注册"})
			return
		}
		h.writeError(c, err)
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, AuthResponse{Token: token})
}

// GetCurrentUser godoc
// @Summary 获取当前用户信息
// @Description 获取当前已登录用户的信息
// @Tags User
// @Security ApiKeyAuth
// @Produce  json
// @Success 200 {object} model.User "成功响应"
// @Failure 401 {object} ErrorResponse "未认证"
// @Failure 404 {object} ErrorResponse "用户不存在"
// @Router /api/me [get]
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未认证"})
		return
	}

	user, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
