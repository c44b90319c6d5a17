package alias

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"shorturl-service/internal/apperr"
)

var pattern = regexp.MustCompile(`^[a-z0-9_-]{3,30}$`)

var (
	ErrInvalid  = fmt.Errorf("%w: 别名须为 3-30 位小写字母、数字、下划线或连字符", apperr.ErrValidation)
	ErrReserved = fmt.Errorf("%w: 别名为系统保留字", apperr.ErrValidation)
	ErrTaken    = fmt.Errorf("%w: 别名已被占用", apperr.ErrConflict)
)

// AliasChecker 查询别名是否已被占用（包括软删除的记录）。
// 别名不区分大小写，与任意大小写形式的 slug 相同同样视为占用。
type AliasChecker interface {
	AliasExists(ctx context.Context, alias string) (bool, error)
	SlugExistsFold(ctx context.Context, code string) (bool, error)
}

// Validator 校验用户自定义短码
type Validator struct {
	checker  AliasChecker
	reserved map[string]struct{}
}

// NewValidator 创建校验器，reserved 为服务自身占用的路径段
func NewValidator(checker AliasChecker, reserved []string) *Validator {
	set := make(map[string]struct{}, len(reserved))
	for _, word := range reserved {
		word = strings.ToLower(strings.Trim(strings.TrimSpace(word), "/"))
		if word != "" {
			set[word] = struct{}{}
		}
	}
	return &Validator{checker: checker, reserved: set}
}

// Normalize 去除首尾空白并转为小写
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Validate 返回规范化后的别名，失败时返回 ErrInvalid、ErrReserved 或 ErrTaken
func (v *Validator) Validate(ctx context.Context, raw string) (string, error) {
	normalized := Normalize(raw)
	if !pattern.MatchString(normalized) {
		return "", ErrInvalid
	}
	if v.IsReserved(normalized) {
		return "", ErrReserved
	}
	exists, err := v.checker.AliasExists(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("检查别名是否存在: %w", err)
	}
	if exists {
		return "", ErrTaken
	}
	clash, err := v.checker.SlugExistsFold(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("检查短码是否存在: %w", err)
	}
	if clash {
		return "", ErrTaken
	}
	return normalized, nil
}

// IsReserved 判断别名是否与保留路径冲突（不区分大小写）
func (v *Validator) IsReserved(alias string) bool {
	_, ok := v.reserved[Normalize(alias)]
	return ok
}
