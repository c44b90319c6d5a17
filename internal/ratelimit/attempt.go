// Package ratelimit 实现登录尝试次数限制。
//
// 计数保存在进程内存中，进程重启后清零。每次尝试同时计入两个滚动窗口计数器：
// (来源, 目标账号) 计数器阈值较低，仅来源计数器阈值较高，用于发现同一来源对多个账号的尝试。
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"shorturl-service/internal/apperr"
)

// Scope 标识触发限制的计数器
type Scope string

const (
	ScopeTarget Scope = "target"
	ScopeSource Scope = "source"
)

// RejectedError 尝试被拒绝
type RejectedError struct {
	Scope Scope
}

func (e *RejectedError) Error() string {
	if e.Scope == ScopeTarget {
		return fmt.Sprintf("%s: 该账号登录尝试过于频繁，请稍后再试", apperr.ErrRateLimited)
	}
	return fmt.Sprintf("%s: 登录尝试过于频繁，请稍后再试", apperr.ErrRateLimited)
}

func (e *RejectedError) Unwrap() error { return apperr.ErrRateLimited }

// Config 限制参数
type Config struct {
	// PerTarget 同一来源对同一账号在窗口内允许的尝试次数
	PerTarget int
	// PerSource 同一来源在窗口内允许的尝试次数
	PerSource int
	Window    time.Duration
}

// DefaultConfig 每分钟同一账号 3 次，同一来源 10 次
var DefaultConfig = Config{PerTarget: 3, PerSource: 10, Window: time.Minute}

type counter struct {
	count       int
	windowStart time.Time
}

// hit 记一次尝试并返回窗口内的次数，窗口过期时从 1 重新计数
func (c *counter) hit(now time.Time, window time.Duration) int {
	if now.Sub(c.windowStart) > window {
		c.count = 0
		c.windowStart = now
	}
	c.count++
	return c.count
}

type targetKey struct {
	source string
	target string
}

// AttemptLimiter 并发安全，所有计数器由一把锁保护
type AttemptLimiter struct {
	mu      sync.Mutex
	cfg     Config
	targets map[targetKey]*counter
	sources map[string]*counter
	now     func() time.Time
	logger  *zap.SugaredLogger
}

type Option func(*AttemptLimiter)

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(l *AttemptLimiter) { l.now = now }
}

// NewAttemptLimiter 创建限制器，非正数的参数使用 DefaultConfig 中的值
func NewAttemptLimiter(cfg Config, logger *zap.SugaredLogger, opts ...Option) *AttemptLimiter {
	if cfg.PerTarget <= 0 {
		cfg.PerTarget = DefaultConfig.PerTarget
	}
	if cfg.PerSource <= 0 {
		cfg.PerSource = DefaultConfig.PerSource
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig.Window
	}
	l := &AttemptLimiter{
		cfg:     cfg,
		targets: make(map[targetKey]*counter),
		sources: make(map[string]*counter),
		now:     time.Now,
		logger:  logger.Named("attempt_limiter"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check 记录一次尝试。超过阈值时返回 *RejectedError，应在校验凭证之前调用。
// 账号计数器先判断，触发时不再累加来源计数器。
func (l *AttemptLimiter) Check(source, target string) error {
	target = strings.ToLower(strings.TrimSpace(target))
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	tk := targetKey{source: source, target: target}
	tc, ok := l.targets[tk]
	if !ok {
		tc = &counter{windowStart: now}
		l.targets[tk] = tc
	}
	if tc.hit(now, l.cfg.Window) > l.cfg.PerTarget {
		l.logger.Warnw("登录尝试超过账号阈值", "source", source, "target", target)
		return &RejectedError{Scope: ScopeTarget}
	}

	sc, ok := l.sources[source]
	if !ok {
		sc = &counter{windowStart: now}
		l.sources[source] = sc
	}
	if sc.hit(now, l.cfg.Window) > l.cfg.PerSource {
		l.logger.Warnw("登录尝试超过来源阈值", "source", source)
		return &RejectedError{Scope: ScopeSource}
	}
	return nil
}

// Sweep 删除窗口已过期的计数器
func (l *AttemptLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, c := range l.targets {
		if now.Sub(c.windowStart) > l.cfg.Window {
			delete(l.targets, k)
			removed++
		}
	}
	for k, c := range l.sources {
		if now.Sub(c.windowStart) > l.cfg.Window {
			delete(l.sources, k)
			removed++
		}
	}
	return removed
}

// Run 按 interval 定期清理，直到 ctx 被取消
func (l *AttemptLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debugf("清理了 %d 个过期计数器", n)
			}
		}
	}
}

// Len 返回当前计数器数量
func (l *AttemptLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.targets) + len(l.sources)
}
