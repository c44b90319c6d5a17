package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShortLink 短链接模型
//
// Slug 始终存在；Alias 为用户自定义短码（小写）。两者都全局唯一，
// 软删除的记录同样占用，永不复用。
type ShortLink struct {
	ID          string         `gorm:"type:varchar(36);primarykey" json:"id"`
	OriginalURL string         `gorm:"type:text;not null" json:"original_url"`
	Slug        string         `gorm:"size:10;uniqueIndex;not null" json:"slug"`
	SlugFold    string         `gorm:"size:10;index;not null" json:"-"`
	Alias       *string        `gorm:"size:30;uniqueIndex" json:"alias,omitempty"`
	OwnerID     *string        `gorm:"type:varchar(36);index:idx_owner_deleted,priority:1" json:"owner_id"`
	AccessCount int64          `gorm:"not null;default:0" json:"access_count"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index:idx_owner_deleted,priority:2" json:"-"`
}

// TableName 指定表名
func (ShortLink) TableName() string {
	return "short_links"
}

// BeforeCreate 在插入前分配 ID，并记录 slug 的小写形式供别名查重
func (l *ShortLink) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.SlugFold = strings.ToLower(l.Slug)
	return nil
}

// PublicCode 对外暴露的短码：有别名用别名，否则用 slug
func (l *ShortLink) PublicCode() string {
	if l.Alias != nil && *l.Alias != "" {
		return *l.Alias
	}
	return l.Slug
}

// IsOwnedBy 判断调用方是否为所有者，匿名链接不属于任何人
func (l *ShortLink) IsOwnedBy(callerID string) bool {
	return l.OwnerID != nil && callerID != "" && *l.OwnerID == callerID
}
