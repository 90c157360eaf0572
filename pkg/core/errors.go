package core

import (
	"errors"
	"fmt"
)

// 定义核心错误
var (
	// ErrRateLimited 数据源侧限流（可重试）
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrEmptySymbols 股票代码列表为空错误
	ErrEmptySymbols = errors.New("symbols list is empty")

	// ErrStoreClosed 存储已关闭错误
	ErrStoreClosed = errors.New("store is closed")
)

// InvalidRequestError 无效请求：代码非法或参数错误，不重试
type InvalidRequestError struct {
	Symbol string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request for %s: %s", e.Symbol, e.Reason)
}

// FetchFailedError 重试耗尽后的抓取失败，携带最后一次的底层原因
type FetchFailedError struct {
	Symbol      string
	Granularity Granularity
	Attempts    int
	Cause       error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch %s@%s failed after %d attempts: %v",
		e.Symbol, e.Granularity, e.Attempts, e.Cause)
}

func (e *FetchFailedError) Unwrap() error { return e.Cause }

// StorageError 存储层写入/查询失败，整批已回滚
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// IsInvalidRequest 判断错误链中是否存在无效请求
func IsInvalidRequest(err error) bool {
	var ie *InvalidRequestError
	return errors.As(err, &ie)
}
