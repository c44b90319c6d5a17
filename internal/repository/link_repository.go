package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"shorturl-service/internal/model"
	"shorturl-service/internal/shortcode"
)

// LinkRepository 短链接存储
type LinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository 创建短链接存储
func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create 插入新记录，slug 或 alias 冲突时返回 ErrDuplicateKey
func (r *LinkRepository) Create(ctx context.Context, link *model.ShortLink) error {
	return translate(r.db.WithContext(ctx).Create(link).Error)
}

// SlugExists 检查 slug 是否存在，使用 Unscoped 包含软删除的记录
func (r *LinkRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	return r.exists(ctx, "slug = ?", slug)
}

// AliasExists 检查别名是否存在，同样包含软删除的记录
func (r *LinkRepository) AliasExists(ctx context.Context, alias string) (bool, error) {
	return r.exists(ctx, "alias = ?", strings.ToLower(alias))
}

// SlugExistsFold 忽略大小写检查 slug 是否存在，包含软删除的记录
func (r *LinkRepository) SlugExistsFold(ctx context.Context, code string) (bool, error) {
	return r.exists(ctx, "slug_fold = ?", strings.ToLower(code))
}

func (r *LinkRepository) exists(ctx context.Context, query string, arg string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.ShortLink{}).Where(query, arg).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询短链接: %w", err)
	}
	return count > 0, nil
}

// FindActiveByCode 按 slug（区分大小写）或别名（不区分大小写）查找未删除的记录。
// 两者都命中时 slug 优先；不符合 slug 格式的短码只按别名查找。
func (r *LinkRepository) FindActiveByCode(ctx context.Context, code string) (*model.ShortLink, error) {
	lower := strings.ToLower(code)
	query := r.db.WithContext(ctx).Where("alias = ?", lower)
	if shortcode.IsValid(code) {
		query = r.db.WithContext(ctx).Where("slug = ? OR alias = ?", code, lower)
	}
	var candidates []model.ShortLink
	err := query.Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("查询短链接: %w", err)
	}
	// 大小写不敏感的排序规则下 slug = ? 可能命中其它大小写组合，这里再精确比较一次
	for i := range candidates {
		if candidates[i].Slug == code {
			return &candidates[i], nil
		}
	}
	for i := range candidates {
		if candidates[i].Alias != nil && *candidates[i].Alias == lower {
			return &candidates[i], nil
		}
	}
	return nil, ErrRecordNotFound
}

// FindActiveByID 按 ID 查找未删除的记录
func (r *LinkRepository) FindActiveByID(ctx context.Context, id string) (*model.ShortLink, error) {
	var link model.ShortLink
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&link).Error; err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

// IncrementAccess 原子地把访问次数加一，记录已被删除时返回 ErrRecordNotFound
func (r *LinkRepository) IncrementAccess(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&model.ShortLink{}).
		Where("id = ? AND deleted_at IS NULL", id).
		UpdateColumn("access_count", gorm.Expr("access_count + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("更新访问次数: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ListActiveByOwner 返回所有者未删除的链接，按创建时间倒序
func (r *LinkRepository) ListActiveByOwner(ctx context.Context, ownerID string) ([]model.ShortLink, error) {
	links := make([]model.ShortLink, 0)
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").Order("id DESC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("查询链接列表: %w", err)
	}
	return links, nil
}

// UpdateOriginalURL 仅在记录未删除时更新目标地址
func (r *LinkRepository) UpdateOriginalURL(ctx context.Context, id, originalURL string, now time.Time) error {
	return r.conditionalUpdate(ctx, id, map[string]interface{}{
		"original_url": originalURL,
		"updated_at":   now,
	})
}

// SoftDelete 仅在记录未删除时设置 deleted_at，重复删除返回 ErrRecordNotFound
func (r *LinkRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	return r.conditionalUpdate(ctx, id, map[string]interface{}{
		"deleted_at": now,
		"updated_at": now,
	})
}

func (r *LinkRepository) conditionalUpdate(ctx context.Context, id string, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&model.ShortLink{}).
		Where("id = ? AND deleted_at IS NULL", id).
		UpdateColumns(values)
	if result.Error != nil {
		return fmt.Errorf("更新短链接: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// OwnerTotals 统计所有者未删除的链接数和总访问次数
func (r *LinkRepository) OwnerTotals(ctx context.Context, ownerID string) (links int64, clicks int64, err error) {
	query := r.db.WithContext(ctx).Model(&model.ShortLink{}).Where("owner_id = ?", ownerID)
	if err = query.Count(&links).Error; err != nil {
		return 0, 0, fmt.Errorf("统计链接数: %w", err)
	}
	err = r.db.WithContext(ctx).Model(&model.ShortLink{}).
		Where("owner_id = ?", ownerID).
		Select("COALESCE(SUM(access_count), 0)").
		Scan(&clicks).Error
	if err != nil {
		return 0, 0, fmt.Errorf("统计访问次数: %w", err)
	}
	return links, clicks, nil
}

// RecordClick 写入一条访问记录
func (r *LinkRepository) RecordClick(ctx context.Context, click *model.ClickRecord) error {
	return translate(r.db.WithContext(ctx).Create(click).Error)
}

// CountClicks 返回某条链接的访问记录数
func (r *LinkRepository) CountClicks(ctx context.Context, linkID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ClickRecord{}).Where("short_link_id = ?", linkID).Count(&count).Error
	return count, err
}
