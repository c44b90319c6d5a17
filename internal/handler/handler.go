package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"shorturl-service/internal/link"
	"shorturl-service/internal/middleware"
	auth "shorturl-service/pkg/jwt"
)

// ShortLinkHandler 短链接相关的处理器
type ShortLinkHandler struct {
	errorWriter
	registry *link.Registry
	tokens   *auth.TokenManager
}

// NewShortLinkHandler 创建处理器实例
func NewShortLinkHandler(registry *link.Registry, tokens *auth.TokenManager) *ShortLinkHandler {
	return &ShortLinkHandler{
		errorWriter: newErrorWriter(0),
		registry:    registry,
		tokens:      tokens,
	}
}

// HealthCheck godoc
// @Summary 健康检查
// @Tags System
// @Produce  json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *ShortLinkHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
}

// ShortenRequest 创建短链接的请求
type ShortenRequest struct {
	OriginalURL string `json:"original_url" binding:"required" example:"https://github.com/gin-gonic/gin"`
	Alias       string `json:"alias,omitempty" example:"gin"`
}

// ShortenResponse 创建短链接的响应，匿名创建时 owner_id 为 null
type ShortenResponse struct {
	ID          string  `json:"id" example:"4f1c7c3e-0b0e-4e43-9d7d-2f0e7a7c1b11"`
	Short       string  `json:"short" example:"aZ3k9Q"`
	ShortURL    string  `json:"short_url" example:"http://localhost:8080/aZ3k9Q"`
	OriginalURL string  `json:"original_url" example:"https://github.com/gin-gonic/gin"`
	OwnerID     *string `json:"owner_id"`
}

// UpdateRequest 修改目标地址的请求
type UpdateRequest struct {
	OriginalURL string `json:"original_url" binding:"required" example:"https://go.dev"`
}

// Shorten godoc
// @Summary 创建短链接
// @Description 为一个长 URL 创建短链接，可选自定义别名。携带令牌时链接归属当前用户，令牌无效时返回 401
// @Tags ShortLink
// @Accept  json
// @Produce  json
// @Param   request  body   ShortenRequest  true  "长链接与可选别名"
// @Success 201 {object} ShortenResponse "成功响应"
// @Failure 400 {object} ErrorResponse "URL 或别名无效、别名已被占用"
// @Failure 401 {object} ErrorResponse "令牌无效"
// @Failure 500 {object} ErrorResponse "服务器内部错误"
// @Router /shorten [post]
func (h *ShortLinkHandler) Shorten(c *gin.Context) {
	callerID, err := middleware.ResolveCaller(h.tokens, c.GetHeader("Authorization"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req ShortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}

	input := link.CreateInput{OriginalURL: req.OriginalURL, Alias: req.Alias}
	if callerID != "" {
		input.OwnerID = &callerID
	}
	created, err := h.registry.Create(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ShortenResponse{
		ID:          created.ID,
		Short:       created.PublicCode(),
		ShortURL:    h.registry.ShortURL(created),
		OriginalURL: created.OriginalURL,
		OwnerID:     created.OwnerID,
	})
}

// Redirect godoc
// @Summary 访问短链接
// @Description 302 跳转到原始地址，短码大小写敏感，别名不区分大小写
// @Tags ShortLink
// @Param   code  path  string  true  "短码或别名"
// @Success 302
// @Failure 404 {object} ErrorResponse "链接不存在"
// @Router /{code} [get]
func (h *ShortLinkHandler) Redirect(c *gin.Context) {
	target, err := h.registry.Resolve(c.Request.Context(), c.Param("code"), link.Visit{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// ListMine godoc
// @Summary 我的短链接
// @Description 按创建时间倒序返回当前用户未删除的短链接
// @Tags MyURLs
// @Security ApiKeyAuth
// @Produce  json
// @Success 200 {array} link.Summary
// @Failure 401 {object} ErrorResponse "未认证"
// @Router /my-urls [get]
func (h *ShortLinkHandler) ListMine(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	summaries, err := h.registry.ListOwned(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// Stats godoc
// @Summary 我的统计
// @Tags MyURLs
// @Security ApiKeyAuth
// @Produce  json
// @Success 200 {object} link.Stats
// @Failure 401 {object} ErrorResponse "未认证"
// @Router /my-urls/stats [get]
func (h *ShortLinkHandler) Stats(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	stats, err := h.registry.OwnerStats(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Update godoc
// @Summary 修改目标地址
// @Tags MyURLs
// @Security ApiKeyAuth
// @Accept  json
// @Produce  json
// @Param   id       path  string         true  "链接 ID"
// @Param   request  body  UpdateRequest  true  "新的目标地址"
// @Success 200 {object} link.Summary
// @Failure 400 {object} ErrorResponse "URL 无效"
// @Failure 403 {object} ErrorResponse "不是所有者"
// @Failure 404 {object} ErrorResponse "链接不存在"
// @Router /my-urls/{id} [put]
func (h *ShortLinkHandler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	summary, err := h.registry.UpdateOriginalURL(c.Request.Context(), c.Param("id"), userID, req.OriginalURL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Delete godoc
// @Summary 删除短链接
// @Description 软删除，删除后短码不会被再次分配
// @Tags MyURLs
// @Security ApiKeyAuth
// @Param   id  path  string  true  "链接 ID"
// @Success 204
// @Failure 403 {object} ErrorResponse "不是所有者"
// @Failure 404 {object} ErrorResponse "链接不存在"
// @Router /my-urls/{id} [delete]
func (h *ShortLinkHandler) Delete(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	if err := h.registry.SoftDelete(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// QRCode godoc
// @Summary 短链接二维码
// @Tags MyURLs
// @Security ApiKeyAuth
// @Produce  png
// @Param   id    path   string  true   "链接 ID"
// @Param   size  query  int     false  "边长（像素），默认 256"
// @Success 200 {file} binary
// @Failure 403 {object} ErrorResponse "不是所有者"
// @Failure 404 {object} ErrorResponse "链接不存在"
// @Router /my-urls/{id}/qrcode [get]
func (h *ShortLinkHandler) QRCode(c *gin.Context) {
	var query struct {
		Size int `form:"size" binding:"omitempty,min=64,max=1024"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}
	if query.Size == 0 {
		query.Size = 256
	}

	userID, _ := middleware.CurrentUserID(c)
	summary, err := h.registry.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	png, err := qrcode.Encode(summary.ShortURL, qrcode.Medium, query.Size)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", "inline; filename=qrcode.png")
	c.Data(http.StatusOK, "image/png", png)
}
