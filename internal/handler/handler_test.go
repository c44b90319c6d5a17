package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"shorturl-service/internal/alias"
	"shorturl-service/internal/apperr"
	"shorturl-service/internal/cache"
	"shorturl-service/internal/config"
	"shorturl-service/internal/link"
	"shorturl-service/internal/middleware"
	"shorturl-service/internal/model"
	"shorturl-service/internal/ratelimit"
	"shorturl-service/internal/repository"
	"shorturl-service/internal/shortcode"
	"shorturl-service/pkg/database"
	auth "shorturl-service/pkg/jwt"
)

const baseURL = "http://sho.rt"

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	links  *repository.LinkRepository
	mr     *miniredis.Miniredis
}

type envOptions struct {
	withCache      bool
	rejectStatus   int
	trustedProxies []string
}

// setupTest 为集成测试初始化一个干净的环境：内存数据库、真实的组件和完整的路由
func setupTest(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t).Sugar()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(database.Config{
		Driver:       "sqlite",
		Path:         fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
	}, logger)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	env := &testEnv{db: db, links: repository.NewLinkRepository(db)}

	registryOpts := []link.Option{link.WithBaseURL(baseURL)}
	if opts.withCache {
		env.mr = miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: env.mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		registryOpts = append(registryOpts, link.WithCache(cache.NewRedisCache(client, "shortlink:")))
	}

	registry := link.NewRegistry(env.links,
		shortcode.NewGenerator(env.links, logger),
		alias.NewValidator(env.links, config.DefaultReservedWords),
		logger, registryOpts...)
	tokens := auth.NewManager("test-secret", "shorturl-service", 1)
	attempts := ratelimit.NewAttemptLimiter(ratelimit.DefaultConfig, logger)

	env.router, err = NewEngine(opts.trustedProxies)
	require.NoError(t, err)
	RegisterRoutes(env.router,
		NewShortLinkHandler(registry, tokens),
		NewAuthHandler(repository.NewUserRepository(db), tokens, attempts, opts.rejectStatus),
		middleware.AuthMiddleware(tokens),
	)
	return env
}

func (e *testEnv) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// register 注册用户并返回令牌
func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	w := e.do(http.MethodPost, "/auth/register", RegisterRequest{Email: email, Password: "password123"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *testEnv) shorten(t *testing.T, req ShortenRequest, token string) ShortenResponse {
	t.Helper()
	w := e.do(http.MethodPost, "/shorten", req, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp ShortenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

// TestShortenAndRedirect_Anonymous 测试匿名创建和重定向的完整流程
func TestShortenAndRedirect_Anonymous(t *testing.T) {
	env := setupTest(t, envOptions{})

	w := env.do(http.MethodPost, "/shorten", ShortenRequest{OriginalURL: "http://example.com"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"owner_id":null`)

	var created ShortenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Regexp(t, slugPattern, created.Short)
	assert.Equal(t, baseURL+"/"+created.Short, created.ShortURL)
	assert.Nil(t, created.OwnerID)

	w = env.do(http.MethodGet, "/"+created.Short, nil, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://example.com", w.Header().Get("Location"))

	stored, err := env.links.FindActiveByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.AccessCount)
}

func TestShorten_AliasOwnedAndCaseInsensitive(t *testing.T) {
	env := setupTest(t, envOptions{})
	token := env.register(t, "owner@example.com")

	created := env.shorten(t, ShortenRequest{OriginalURL: "https://go.dev/doc", Alias: "Go_Docs"}, token)
	assert.Equal(t, "go_docs", created.Short)
	assert.Equal(t, baseURL+"/go_docs", created.ShortURL)
	require.NotNil(t, created.OwnerID)

	for _, code := range []string{"go_docs", "GO_DOCS", "Go_Docs"} {
		w := env.do(http.MethodGet, "/"+code, nil, "")
		assert.Equal(t, http.StatusFound, w.Code, code)
		assert.Equal(t, "https://go.dev/doc", w.Header().Get("Location"))
	}
}

func TestShorten_Rejections(t *testing.T) {
	env := setupTest(t, envOptions{})
	env.shorten(t, ShortenRequest{OriginalURL: "http://a.example", Alias: "taken"}, "")

	cases := []struct {
		name string
		body interface{}
		want string
	}{
		{"alias taken", ShortenRequest{OriginalURL: "http://b.example", Alias: "TAKEN"}, apperr.Message(alias.ErrTaken)},
		{"alias reserved", ShortenRequest{OriginalURL: "http://b.example", Alias: "My-URLs"}, apperr.Message(alias.ErrReserved)},
		{"alias invalid", ShortenRequest{OriginalURL: "http://b.example", Alias: "no spaces"}, apperr.Message(alias.ErrInvalid)},
		{"bad scheme", ShortenRequest{OriginalURL: "ftp://b.example"}, apperr.Message(link.ErrInvalidURL)},
		{"missing url", map[string]string{"alias": "abc"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/shorten", tc.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			if tc.want != "" {
				assert.Equal(t, tc.want, errorOf(t, w))
			}
		})
	}
}

func TestShorten_InvalidTokenIsUnauthorized(t *testing.T) {
	env := setupTest(t, envOptions{})

	w := env.do(http.MethodPost, "/shorten", ShortenRequest{OriginalURL: "http://example.com"}, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/shorten", strings.NewReader(`{"original_url":"http://example.com"}`))
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 失败的请求不会退化为匿名创建
	var count int64
	require.NoError(t, env.db.Model(&model.ShortLink{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRedirect_NotFound(t *testing.T) {
	env := setupTest(t, envOptions{})

	w := env.do(http.MethodGet, "/zzzzzz", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperr.Message(link.ErrNotFound), errorOf(t, w))
}

func TestMyURLs_RequiresAuth(t *testing.T) {
	env := setupTest(t, envOptions{})

	for _, token := range []string{"", "garbage"} {
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/my-urls", nil, token).Code)
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/my-urls/stats", nil, token).Code)
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodDelete, "/my-urls/x", nil, token).Code)
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/me", nil, token).Code)
	}
}

func TestMyURLs_OwnerLifecycle(t *testing.T) {
	env := setupTest(t, envOptions{})
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")

	first := env.shorten(t, ShortenRequest{OriginalURL: "http://first.example"}, alice)
	second := env.shorten(t, ShortenRequest{OriginalURL: "http://second.example", Alias: "second"}, alice)
	env.shorten(t, ShortenRequest{OriginalURL: "http://bob.example"}, bob)

	env.do(http.MethodGet, "/"+first.Short, nil, "")
	env.do(http.MethodGet, "/second", nil, "")
	env.do(http.MethodGet, "/second", nil, "")

	w := env.do(http.MethodGet, "/my-urls", nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	var list []link.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, "second", list[0].Code)
	assert.EqualValues(t, 2, list[0].AccessCount)
	assert.Equal(t, first.ID, list[1].ID)

	w = env.do(http.MethodGet, "/my-urls/stats", nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	var stats link.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.EqualValues(t, 2, stats.TotalLinks)
	assert.EqualValues(t, 3, stats.TotalClicks)

	// 非所有者
	w = env.do(http.MethodPut, "/my-urls/"+first.ID, UpdateRequest{OriginalURL: "http://evil.example"}, bob)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, "/my-urls/"+first.ID, nil, bob).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/my-urls/"+first.ID+"/qrcode", nil, bob).Code)

	// 所有者修改
	w = env.do(http.MethodPut, "/my-urls/"+first.ID, UpdateRequest{OriginalURL: "https://updated.example"}, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated link.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "https://updated.example", updated.OriginalURL)
	assert.Equal(t, first.Short, updated.Code)
	assert.Equal(t, "https://updated.example", env.do(http.MethodGet, "/"+first.Short, nil, "").Header().Get("Location"))

	w = env.do(http.MethodPut, "/my-urls/"+first.ID, UpdateRequest{OriginalURL: "not a url"}, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 二维码
	w = env.do(http.MethodGet, "/my-urls/"+first.ID+"/qrcode?size=128", nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/my-urls/"+first.ID+"/qrcode?size=5", nil, alice).Code)

	// 软删除是一次性的
	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/my-urls/"+first.ID, nil, alice).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/my-urls/"+first.ID, nil, alice).Code)
	w = env.do(http.MethodPut, "/my-urls/"+first.ID, UpdateRequest{OriginalURL: "http://again.example"}, alice)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/"+first.Short, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/my-urls/"+first.ID+"/qrcode", nil, alice).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/my-urls/no-such-id", nil, alice).Code)

	w = env.do(http.MethodGet, "/my-urls", nil, bob)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestMyURLs_EmptyListIsArray(t *testing.T) {
	env := setupTest(t, envOptions{})
	token := env.register(t, "empty@example.com")

	w := env.do(http.MethodGet, "/my-urls", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRedirect_WithCache(t *testing.T) {
	env := setupTest(t, envOptions{withCache: true})
	token := env.register(t, "cache@example.com")
	created := env.shorten(t, ShortenRequest{OriginalURL: "http://cached.example"}, token)

	for i := 0; i < 3; i++ {
		w := env.do(http.MethodGet, "/"+created.Short, nil, "")
		require.Equal(t, http.StatusFound, w.Code)
	}
	assert.True(t, env.mr.Exists("shortlink:s:"+created.Short))

	stored, err := env.links.FindActiveByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stored.AccessCount)

	require.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/my-urls/"+created.ID, nil, token).Code)
	assert.False(t, env.mr.Exists("shortlink:s:"+created.Short))
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/"+created.Short, nil, "").Code)
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	env := setupTest(t, envOptions{})
	env.register(t, "User@Example.com")

	w := env.do(http.MethodPost, "/auth/register", RegisterRequest{Email: "user@example.com", Password: "password123"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	w = env.do(http.MethodPost, "/auth/register", RegisterRequest{Email: "short@example.com", Password: " 12345 "}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPost, "/auth/register", RegisterRequest{Email: "not-an-email", Password: "password123"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/auth/login", LoginRequest{Email: "user@example.com", Password: "wrong-pass"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPost, "/auth/login", LoginRequest{Email: "nobody@example.com", Password: "password123"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/auth/login", LoginRequest{Email: "USER@example.com", Password: "password123"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = env.do(http.MethodGet, "/api/me", nil, resp.Token)
	require.Equal(t, http.StatusOK, w.Code)
	var me model.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "user@example.com", me.Email)
	assert.NotNil(t, me.LastLogin)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestLogin_InactiveAccount(t *testing.T) {
	env := setupTest(t, envOptions{})
	env.register(t, "idle@example.com")
	require.NoError(t, env.db.Model(&model.User{}).Where("email = ?", "idle@example.com").
		UpdateColumn("is_active", false).Error)

	w := env.do(http.MethodPost, "/auth/login", LoginRequest{Email: "idle@example.com", Password: "password123"}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusBadRequest} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			env := setupTest(t, envOptions{rejectStatus: status})
			env.register(t, "target@example.com")

			for i := 0; i < ratelimit.DefaultConfig.PerTarget; i++ {
				w := env.do(http.MethodPost, "/auth/login", LoginRequest{Email: "target@example.com", Password: "wrong-pass"}, "")
				require.Equal(t, http.StatusBadRequest, w.Code)
			}

			// 超过阈值后即使密码正确也被拒绝
			w := env.do(http.MethodPost, "/auth/login", LoginRequest{Email: "target@example.com", Password: "password123"}, "")
			assert.Equal(t, status, w.Code)
			assert.Equal(t, apperr.Message(&ratelimit.RejectedError{Scope: ratelimit.ScopeTarget}), errorOf(t, w))
		})
	}
}

// loginFrom 以给定的 X-Forwarded-For 发起登录，连接对端地址为 httptest 默认的 192.0.2.1
func (e *testEnv) loginFrom(forwardedFor, email, password string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(LoginRequest{Email: email, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestLogin_SpoofedForwardedForDoesNotResetLimit(t *testing.T) {
	env := setupTest(t, envOptions{rejectStatus: http.StatusTooManyRequests})
	env.register(t, "target@example.com")

	for i := 0; i < ratelimit.DefaultConfig.PerTarget; i++ {
		w := env.loginFrom(fmt.Sprintf("10.0.0.%d", i), "target@example.com", "wrong-pass")
		require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	}

	w := env.loginFrom("10.0.0.99", "target@example.com", "password123")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, apperr.Message(&ratelimit.RejectedError{Scope: ratelimit.ScopeTarget}), errorOf(t, w))
}

func TestLogin_TrustedProxyForwardsClientIP(t *testing.T) {
	env := setupTest(t, envOptions{rejectStatus: http.StatusTooManyRequests, trustedProxies: []string{"192.0.2.1"}})
	env.register(t, "target@example.com")

	for i := 0; i < ratelimit.DefaultConfig.PerTarget; i++ {
		w := env.loginFrom("203.0.113.5", "target@example.com", "wrong-pass")
		require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	}
	assert.Equal(t, http.StatusTooManyRequests, env.loginFrom("203.0.113.5", "target@example.com", "password123").Code)

	// 代理之后的另一个客户端有独立的计数
	assert.Equal(t, http.StatusOK, env.loginFrom("203.0.113.6", "target@example.com", "password123").Code)
}

func TestNewEngine_RejectsInvalidProxy(t *testing.T) {
	_, err := NewEngine([]string{"not-an-ip"})
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	env := setupTest(t, envOptions{})
	w := env.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestErrorWriter_Status(t *testing.T) {
	w := newErrorWriter(0)
	cases := []struct {
		err  error
		want int
	}{
		{alias.ErrInvalid, http.StatusBadRequest},
		{alias.ErrTaken, http.StatusBadRequest},
		{link.ErrNotFound, http.StatusNotFound},
		{link.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: x", apperr.ErrUnauthorized), http.StatusUnauthorized},
		{&ratelimit.RejectedError{Scope: ratelimit.ScopeSource}, http.StatusTooManyRequests},
		{shortcode.ErrExhausted, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, w.status(tc.err), tc.err.Error())
	}
	assert.Equal(t, http.StatusBadRequest, newErrorWriter(http.StatusBadRequest).status(&ratelimit.RejectedError{}))
}
