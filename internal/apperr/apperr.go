// Package apperr 定义业务错误的分类。
//
// 各业务包通过 fmt.Errorf("%w: ...") 包装这里的分类错误，
// 由 handler 层统一通过 errors.Is 映射为 HTTP 状态码。
package apperr

import "errors"

var (
	// ErrValidation 输入不合法
	ErrValidation = errors.New("validation failed")
	// ErrConflict 唯一性冲突
	ErrConflict = errors.New("conflict")
	// ErrNotFound 记录不存在或已被软删除
	ErrNotFound = errors.New("not found")
	// ErrForbidden 记录存在但调用方不是所有者
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited 尝试次数超过阈值
	ErrRateLimited = errors.New("rate limited")
	// ErrGenerationExhausted 短码生成重试耗尽，属于服务端异常
	ErrGenerationExhausted = errors.New("generation exhausted")
	// ErrUnauthorized 凭证无效或已过期
	ErrUnauthorized = errors.New("unauthorized")
)

// Message 返回错误中面向客户端的描述部分。
// 包装格式为 "<分类>: <描述>"，没有描述时返回完整错误文本。
func Message(err error) string {
	msg := err.Error()
	for _, kind := range []error{
		ErrValidation, ErrConflict, ErrNotFound, ErrForbidden,
		ErrRateLimited, ErrGenerationExhausted, ErrUnauthorized,
	} {
		prefix := kind.Error() + ": "
		if errors.Is(err, kind) && len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
