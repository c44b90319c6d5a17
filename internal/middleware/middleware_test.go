package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"shorturl-service/internal/apperr"
	"shorturl-service/internal/config"
	auth "shorturl-service/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestResolveCaller(t *testing.T) {
	tm := auth.NewManager("secret", "test", 1)
	token, err := tm.GenerateToken("user-1", "a@example.com")
	require.NoError(t, err)

	id, err := ResolveCaller(tm, "")
	require.NoError(t, err)
	assert.Empty(t, id, "没有认证头视为匿名")

	id, err = ResolveCaller(tm, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	id, err = ResolveCaller(tm, "bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	for _, header := range []string{"Bearer", "Basic abc", "Bearer a b", "Bearer " + token + "x"} {
		_, err := ResolveCaller(tm, header)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized, header)
	}
}

func TestAuthMiddleware(t *testing.T) {
	tm := auth.NewManager("secret", "test", 1)
	token, err := tm.GenerateToken("user-1", "a@example.com")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/private", AuthMiddleware(tm), func(c *gin.Context) {
		id, ok := CurrentUserID(c)
		require.True(t, ok)
		c.String(http.StatusOK, id)
	})

	w := serve(r, "/private", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(r, "/private", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/private", map[string]string{"Authorization": "Bearer nope"}).Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(config.Limit{Enabled: true, Requests: 60, Burst: 2, SkipPaths: []string{"/health"}})

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, "/x", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, "/x", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, "/x", nil).Code)

	// 跳过的路径不受限
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(r, "/health", nil).Code)
	}

	// 不同 IP 各自计数
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_SkipPathsMatchWholeSegments(t *testing.T) {
	rl := NewRateLimiter(config.Limit{Enabled: true, Requests: 60, Burst: 1, SkipPaths: []string{"/health", "/swagger/"}})

	cases := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/health/", true},
		{"/swagger", true},
		{"/swagger/index.html", true},
		{"/healthy", false},
		{"/swaggerx", false},
		{"/abc123", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, rl.skipped(tc.path), tc.path)
	}

	// 形如保留路径前缀的别名同样受限
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/:code", func(c *gin.Context) { c.Status(http.StatusFound) })
	assert.Equal(t, http.StatusFound, serve(r, "/healthy", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, "/healthy", nil).Code)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(config.Limit{Enabled: true, Requests: 60, Burst: 1})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.getVisitor("1.1.1.1")
	now = now.Add(5 * time.Minute)
	rl.getVisitor("2.2.2.2")

	now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, rl.Cleanup())
	assert.Len(t, rl.visitors, 1)
}

func TestGinZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(GinZapLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(r, "/ok?q=1", nil)
	serve(r, "/fail", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/ok", entries[0].Message)
	assert.Equal(t, "q=1", entries[0].ContextMap()["query"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestGinZapRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	r := gin.New()
	r.Use(GinZapRecovery(zap.New(core), true))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(r, "/panic", map[string]string{"Authorization": "Bearer secret-token"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Contains(t, fields, "stack")
	assert.NotContains(t, fields["request"], "secret-token")
}
