// Package repository 基于 gorm 的持久化实现。
//
// 约定：唯一约束冲突返回包装了 apperr.ErrConflict 的错误，
// 查询不到（含软删除）返回包装了 apperr.ErrNotFound 的错误。
package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"shorturl-service/internal/apperr"
)

var (
	ErrDuplicateKey   = fmt.Errorf("%w: 唯一约束冲突", apperr.ErrConflict)
	ErrRecordNotFound = fmt.Errorf("%w: 记录不存在", apperr.ErrNotFound)
)

// translate 把驱动错误归类为仓储错误
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	if isDuplicate(err) {
		return fmt.Errorf("%w (%v)", ErrDuplicateKey, err)
	}
	return err
}

// isDuplicate 优先使用 gorm 的错误翻译，未开启 TranslateError 时退回到按错误文本判断
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}
