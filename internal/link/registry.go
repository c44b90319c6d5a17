package link

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"shorturl-service/internal/alias"
	"shorturl-service/internal/apperr"
	"shorturl-service/internal/cache"
	"shorturl-service/internal/model"
	"shorturl-service/internal/shortcode"
)

const (
	minURLLength = 5
	maxURLLength = 2048

	// DefaultMaxInsertAttempts 插入时 slug 冲突的最大重试次数
	DefaultMaxInsertAttempts = 5
	// DefaultCacheTTL 解析缓存的过期时间
	DefaultCacheTTL = 24 * time.Hour
)

var (
	ErrNotFound   = fmt.Errorf("%w: 链接不存在", apperr.ErrNotFound)
	ErrForbidden  = fmt.Errorf("%w: 无权操作该链接", apperr.ErrForbidden)
	ErrInvalidURL = fmt.Errorf("%w: URL 必须以 http:// 或 https:// 开头，长度 5-2048", apperr.ErrValidation)
)

// Store 注册表依赖的持久化能力。
// Create 遇到唯一约束冲突时返回包装了 apperr.ErrConflict 的错误；
// 查找、更新不到未删除记录时返回包装了 apperr.ErrNotFound 的错误。
type Store interface {
	shortcode.SlugChecker
	alias.AliasChecker
	Create(ctx context.Context, link *model.ShortLink) error
	FindActiveByCode(ctx context.Context, code string) (*model.ShortLink, error)
	FindActiveByID(ctx context.Context, id string) (*model.ShortLink, error)
	IncrementAccess(ctx context.Context, id string) error
	ListActiveByOwner(ctx context.Context, ownerID string) ([]model.ShortLink, error)
	UpdateOriginalURL(ctx context.Context, id, originalURL string, now time.Time) error
	SoftDelete(ctx context.Context, id string, now time.Time) error
	OwnerTotals(ctx context.Context, ownerID string) (links int64, clicks int64, err error)
	RecordClick(ctx context.Context, click *model.ClickRecord) error
}

// SlugGenerator 生成未被占用的 slug
type SlugGenerator interface {
	Generate(ctx context.Context) (string, error)
}

// AliasValidator 校验并规范化别名
type AliasValidator interface {
	Validate(ctx context.Context, raw string) (string, error)
}

// CreateInput 创建短链接的参数。Alias 为空表示未提供，OwnerID 为 nil 表示匿名创建
type CreateInput struct {
	OriginalURL string
	Alias       string
	OwnerID     *string
}

// Visit 一次解析请求的来源信息
type Visit struct {
	IP        string
	UserAgent string
	Referer   string
}

// Summary 返回给所有者的链接摘要
type Summary struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	ShortURL    string    `json:"short_url"`
	OriginalURL string    `json:"original_url"`
	AccessCount int64     `json:"access_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Stats 所有者的汇总数据
type Stats struct {
	TotalLinks  int64 `json:"total_links"`
	TotalClicks int64 `json:"total_clicks"`
}

// cachedTarget 缓存中保存的解析结果
type cachedTarget struct {
	ID          string `json:"id"`
	OriginalURL string `json:"original_url"`
}

// Registry 负责短链接的创建、解析、列表、更新和软删除，并校验所有权
type Registry struct {
	store             Store
	generator         SlugGenerator
	validator         AliasValidator
	cache             cache.Cache
	cacheTTL          time.Duration
	baseURL           string
	now               func() time.Time
	maxInsertAttempts int
	logger            *zap.SugaredLogger
}

type Option func(*Registry)

// WithBaseURL 设置拼接短链接时使用的前缀，例如 https://sho.rt
func WithBaseURL(base string) Option {
	return func(r *Registry) { r.baseURL = strings.TrimRight(base, "/") }
}

// WithCache 启用解析缓存，传入 nil 等同于不启用
func WithCache(c cache.Cache) Option {
	return func(r *Registry) { r.cache = c }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.cacheTTL = ttl
		}
	}
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithMaxInsertAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxInsertAttempts = n
		}
	}
}

// NewRegistry 创建注册表
func NewRegistry(store Store, generator SlugGenerator, validator AliasValidator, logger *zap.SugaredLogger, opts ...Option) *Registry {
	r := &Registry{
		store:             store,
		generator:         generator,
		validator:         validator,
		cacheTTL:          DefaultCacheTTL,
		now:               time.Now,
		maxInsertAttempts: DefaultMaxInsertAttempts,
		logger:            logger.Named("link_registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create 创建短链接。提供别名时先校验别名，任何失败都不会产生写入。
// 插入采用乐观方式：唯一约束冲突时若别名已被占用则返回 alias.ErrTaken，否则视为 slug 冲突换一个重试。
func (r *Registry) Create(ctx context.Context, in CreateInput) (*model.ShortLink, error) {
	originalURL, err := ValidateURL(in.OriginalURL)
	if err != nil {
		return nil, err
	}

	var aliasPtr *string
	if strings.TrimSpace(in.Alias) != "" {
		normalized, err := r.validator.Validate(ctx, in.Alias)
		if err != nil {
			return nil, err
		}
		aliasPtr = &normalized
	}

	var ownerPtr *string
	if in.OwnerID != nil && *in.OwnerID != "" {
		owner := *in.OwnerID
		ownerPtr = &owner
	}

	for attempt := 1; attempt <= r.maxInsertAttempts; attempt++ {
		slug, err := r.generator.Generate(ctx)
		if err != nil {
			return nil, err
		}

		now := r.now()
		link := &model.ShortLink{
			OriginalURL: originalURL,
			Slug:        slug,
			Alias:       aliasPtr,
			OwnerID:     ownerPtr,
			AccessCount: 0,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = r.store.Create(ctx, link)
		if err == nil {
			r.logger.Infow("短链接已创建", "id", link.ID, "code", link.PublicCode(), "anonymous", ownerPtr == nil)
			return link, nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, fmt.Errorf("保存短链接: %w", err)
		}

		if aliasPtr != nil {
			taken, checkErr := r.store.AliasExists(ctx, *aliasPtr)
			if checkErr != nil {
				return nil, fmt.Errorf("检查别名是否存在: %w", checkErr)
			}
			if taken {
				return nil, alias.ErrTaken
			}
		}
		r.logger.Warnf("插入时 slug %s 冲突，重新生成 (第 %d 次)", slug, attempt)
	}
	return nil, shortcode.ErrExhausted
}

// Resolve 返回短码对应的原始地址，并把访问次数原子地加一。
// 软删除的链接与不存在的链接一样返回 ErrNotFound。
func (r *Registry) Resolve(ctx context.Context, code string, visit Visit) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrNotFound
	}

	if target, key, ok := r.lookupCache(ctx, code); ok {
		err := r.store.IncrementAccess(ctx, target.ID)
		if err == nil {
			r.recordClick(ctx, target.ID, visit)
			return target.OriginalURL, nil
		}
		// 缓存中的记录可能已被删除
		r.invalidate(ctx, key)
		if !errors.Is(err, apperr.ErrNotFound) {
			return "", fmt.Errorf("更新访问次数: %w", err)
		}
	}

	link, err := r.store.FindActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("查询短链接: %w", err)
	}

	if err := r.store.IncrementAccess(ctx, link.ID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("更新访问次数: %w", err)
	}

	r.storeCache(ctx, link, code)
	r.recordClick(ctx, link.ID, visit)
	return link.OriginalURL, nil
}

// ListOwned 返回所有者的全部未删除链接，最新的在前。没有链接时返回空切片
func (r *Registry) ListOwned(ctx context.Context, ownerID string) ([]Summary, error) {
	links, err := r.store.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(links))
	for i := range links {
		summaries = append(summaries, r.Summarize(&links[i]))
	}
	return summaries, nil
}

// Get 返回调用方拥有的单条链接
func (r *Registry) Get(ctx context.Context, id, callerID string) (*Summary, error) {
	link, err := r.ownedLink(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	summary := r.Summarize(link)
	return &summary, nil
}

// UpdateOriginalURL 修改目标地址，slug、别名和访问次数保持不变
func (r *Registry) UpdateOriginalURL(ctx context.Context, id, callerID, newURL string) (*Summary, error) {
	originalURL, err := ValidateURL(newURL)
	if err != nil {
		return nil, err
	}
	link, err := r.ownedLink(ctx, id, callerID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	if err := r.store.UpdateOriginalURL(ctx, link.ID, originalURL, now); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("更新短链接: %w", err)
	}
	r.invalidate(ctx, cacheKeys(link)...)

	link.OriginalURL = originalURL
	link.UpdatedAt = now
	summary := r.Summarize(link)
	return &summary, nil
}

// SoftDelete 软删除链接。删除是一次性的，对已删除的链接再次删除返回 ErrNotFound
func (r *Registry) SoftDelete(ctx context.Context, id, callerID string) error {
	link, err := r.ownedLink(ctx, id, callerID)
	if err != nil {
		return err
	}
	if err := r.store.SoftDelete(ctx, link.ID, r.now()); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("删除短链接: %w", err)
	}
	r.invalidate(ctx, cacheKeys(link)...)
	r.logger.Infow("短链接已删除", "id", link.ID, "owner", callerID)
	return nil
}

// OwnerStats 汇总所有者未删除链接的数量和访问次数
func (r *Registry) OwnerStats(ctx context.Context, ownerID string) (*Stats, error) {
	links, clicks, err := r.store.OwnerTotals(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &Stats{TotalLinks: links, TotalClicks: clicks}, nil
}

// Summarize 把记录转换为摘要并拼出短链接
func (r *Registry) Summarize(link *model.ShortLink) Summary {
	return Summary{
		ID:          link.ID,
		Code:        link.PublicCode(),
		ShortURL:    r.ShortURL(link),
		OriginalURL: link.OriginalURL,
		AccessCount: link.AccessCount,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}

// ShortURL 返回对外的短链接地址
func (r *Registry) ShortURL(link *model.ShortLink) string {
	return r.baseURL + "/" + link.PublicCode()
}

// ownedLink 查找未删除的记录并校验所有权
func (r *Registry) ownedLink(ctx context.Context, id, callerID string) (*model.ShortLink, error) {
	link, err := r.store.FindActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询短链接: %w", err)
	}
	if !link.IsOwnedBy(callerID) {
		return nil, ErrForbidden
	}
	return link, nil
}

func (r *Registry) recordClick(ctx context.Context, linkID string, visit Visit) {
	click := &model.ClickRecord{
		ShortLinkID: linkID,
		IPAddress:   visit.IP,
		UserAgent:   visit.UserAgent,
		Referer:     visit.Referer,
		CreatedAt:   r.now(),
	}
	if err := r.store.RecordClick(ctx, click); err != nil {
		r.logger.Warnf("写入访问记录失败: %v", err)
	}
}

// 缓存键：slug 原样保存，别名统一小写，保证不同大小写的请求命中同一条缓存

func slugKey(slug string) string   { return "s:" + slug }
func aliasKey(alias string) string { return "a:" + strings.ToLower(alias) }

func cacheKeys(link *model.ShortLink) []string {
	keys := []string{slugKey(link.Slug)}
	if link.Alias != nil {
		keys = append(keys, aliasKey(*link.Alias))
	}
	return keys
}

func (r *Registry) lookupCache(ctx context.Context, code string) (cachedTarget, string, bool) {
	if r.cache == nil {
		return cachedTarget{}, "", false
	}
	keys := []string{aliasKey(code)}
	if shortcode.IsValid(code) {
		keys = []string{slugKey(code), aliasKey(code)}
	}
	for _, key := range keys {
		var target cachedTarget
		err := r.cache.GetJSON(ctx, key, &target)
		if err == nil && target.ID != "" {
			return target, key, true
		}
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			r.logger.Warnf("读取缓存失败: %v", err)
			return cachedTarget{}, "", false
		}
	}
	return cachedTarget{}, "", false
}

func (r *Registry) storeCache(ctx context.Context, link *model.ShortLink, code string) {
	if r.cache == nil {
		return
	}
	// 回源后链接可能已被修改并清理过缓存，此时写入会把旧地址放回去
	fresh, err := r.store.FindActiveByID(ctx, link.ID)
	if err != nil || !fresh.UpdatedAt.Equal(link.UpdatedAt) || fresh.OriginalURL != link.OriginalURL {
		return
	}
	key := slugKey(link.Slug)
	if link.Slug != code {
		key = aliasKey(code)
	}
	target := cachedTarget{ID: link.ID, OriginalURL: link.OriginalURL}
	if err := r.cache.SetJSON(ctx, key, target, r.cacheTTL); err != nil {
		r.logger.Warnf("写入缓存失败: %v", err)
	}
}

func (r *Registry) invalidate(ctx context.Context, keys ...string) {
	if r.cache == nil || len(keys) == 0 {
		return
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warnf("删除缓存失败: %v", err)
	}
}

// ValidateURL 校验并返回去除首尾空白后的地址，只接受带主机名的 http/https 地址
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < minURLLength || len(raw) > maxURLLength {
		return "", ErrInvalidURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrInvalidURL
	}
	if parsed.Host == "" {
		return "", ErrInvalidURL
	}
	return raw, nil
}
