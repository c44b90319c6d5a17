package shortcode

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"shorturl-service/internal/apperr"
)

const (
	// Charset 包含用于生成短码的所有字符
	Charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// CodeLength 是生成的短码的长度
	CodeLength = 6
	// DefaultMaxAttempts 单次生成最多尝试的次数
	DefaultMaxAttempts = 20
)

// ErrExhausted 多次生成均与已有短码冲突
var ErrExhausted = fmt.Errorf("%w: 短码生成失败，请稍后重试", apperr.ErrGenerationExhausted)

// SlugChecker 查询短码是否已被占用（包括软删除的记录）。
// 别名按小写匹配任意大小写的请求，所以与已有别名小写后相同的 slug 也不能分配。
type SlugChecker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
	AliasExists(ctx context.Context, alias string) (bool, error)
}

// Generator 负责生成在存储中唯一的短码。
// 它只做只读检查，真正的插入由调用方完成，插入时的唯一约束冲突由调用方重试。
type Generator struct {
	checker     SlugChecker
	random      io.Reader
	maxAttempts int
	logger      *zap.SugaredLogger
}

// Option 配置 Generator
type Option func(*Generator)

// WithRandom 替换随机源，默认 crypto/rand.Reader
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.random = r }
}

// WithMaxAttempts 设置最大尝试次数
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// NewGenerator 创建一个新的短码生成器实例
func NewGenerator(checker SlugChecker, logger *zap.SugaredLogger, opts ...Option) *Generator {
	g := &Generator{
		checker:     checker,
		random:      rand.Reader,
		maxAttempts: DefaultMaxAttempts,
		logger:      logger.Named("shortcode_generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate 生成一个当前未被占用的短码
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < g.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := g.randomString(CodeLength)
		if err != nil {
			return "", fmt.Errorf("生成随机短码: %w", err)
		}
		taken, err := g.taken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		g.logger.Debugf("短码 %s 已存在，重新生成 (第 %d 次)", code, i+1)
	}
	g.logger.Warnf("已尝试 %d 次生成短码，但均存在冲突。", g.maxAttempts)
	return "", ErrExhausted
}

func (g *Generator) taken(ctx context.Context, code string) (bool, error) {
	exists, err := g.checker.SlugExists(ctx, code)
	if err != nil {
		return false, fmt.Errorf("检查短码是否存在: %w", err)
	}
	if exists {
		return true, nil
	}
	exists, err = g.checker.AliasExists(ctx, strings.ToLower(code))
	if err != nil {
		return false, fmt.Errorf("检查别名是否存在: %w", err)
	}
	return exists, nil
}

// randomString 使用给定随机源生成一个给定长度的字符串
func (g *Generator) randomString(length int) (string, error) {
	b := make([]byte, length)
	size := big.NewInt(int64(len(Charset)))
	for i := range b {
		num, err := rand.Int(g.random, size)
		if err != nil {
			return "", err
		}
		b[i] = Charset[num.Int64()]
	}
	return string(b), nil
}

// IsValid 判断 code 是否符合生成器的格式
func IsValid(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
