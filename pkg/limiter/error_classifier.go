package limiter

import (
	"context"
	"errors"
	"strings"

	"stockdl/pkg/core"
)

// ErrorLevel 定义错误的严重级别
type ErrorLevel int

const (
	LevelFatal   ErrorLevel = iota // 致命级，立即终止
	LevelNetwork                   // 网络/限流错误，可重试
	LevelInvalid                   // 无效参数，不重试
	LevelUnknown                   // 未知错误，不重试
)

// ErrorClassifier 负责根据错误类型进行分类
type ErrorClassifier struct {
	// 可以扩展添加自定义规则
}

// NewErrorClassifier 创建新的错误分类器
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// Classify 根据错误内容分类错误级别
func (c *ErrorClassifier) Classify(err error) ErrorLevel {
	if err == nil {
		return LevelUnknown
	}

	// 已有类型的错误优先按类型判断
	if core.IsInvalidRequest(err) {
		return LevelInvalid
	}
	if errors.Is(err, core.ErrRateLimited) {
		return LevelNetwork
	}
	if errors.Is(err, context.Canceled) {
		// 整次运行被取消，不属于可重试的远端故障
		return LevelFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// 单次请求超时，可重试
		return LevelNetwork
	}

	msg := strings.ToLower(err.Error())

	// 致命级错误 - 立即终止
	switch {
	case strings.Contains(msg, "connection refused"):
		return LevelFatal
	case strings.Contains(msg, "no such host"):
		return LevelFatal
	case strings.Contains(msg, "forbidden") && strings.Contains(msg, "403"):
		return LevelFatal
	}

	// 网络错误 - 可重试
	switch {
	case strings.Contains(msg, "timeout"):
		return LevelNetwork
	case strings.Contains(msg, "network is unreachable"):
		return LevelNetwork
	case strings.Contains(msg, "temporary failure"):
		return LevelNetwork
	case strings.Contains(msg, "connection reset"):
		return LevelNetwork
	case strings.Contains(msg, "eof"):
		return LevelNetwork
	case strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return LevelNetwork
	case strings.Contains(msg, "circuit breaker"):
		// 熔断器打开，等退避窗口过去后值得再试
		return LevelNetwork
	case strings.Contains(msg, "502"), strings.Contains(msg, "503"), strings.Contains(msg, "504"):
		return LevelNetwork
	}

	// 无效参数 - 不重试
	switch {
	case strings.Contains(msg, "invalid argument"):
		return LevelInvalid
	case strings.Contains(msg, "bad request"):
		return LevelInvalid
	case strings.Contains(msg, "not found") && strings.Contains(msg, "404"):
		return LevelInvalid
	}

	return LevelUnknown
}

// Retryable 报告该错误是否值得重试
func (c *ErrorClassifier) Retryable(err error) bool {
	return c.Classify(err) == LevelNetwork
}
