package model

import (
	"time"
)

// ClickRecord 一次成功解析的访问记录
type ClickRecord struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	ShortLinkID string    `gorm:"type:varchar(36);not null;index" json:"short_link_id"`
	IPAddress   string    `gorm:"size:45" json:"ip_address"`
	UserAgent   string    `gorm:"type:text" json:"user_agent"`
	Referer     string    `gorm:"type:text" json:"referer"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ClickRecord) TableName() string {
	return "click_records"
}

// All 返回需要自动迁移的全部模型
func All() []any {
	return []any{&User{}, &ShortLink{}, &ClickRecord{}}
}
