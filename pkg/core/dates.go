package core

import (
	"fmt"
	"time"
)

// DateLayout 命令行与表单使用的日期格式
const DateLayout = "20060102"

// ParseDate 解析 YYYYMMDD 日期（本地时区零点）
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expect YYYYMMDD): %w", s, err)
	}
	return t, nil
}

// DefaultStart 未指定开始日期时的默认值
func DefaultStart() time.Time {
	t, _ := ParseDate("20200101")
	return t
}

// Today 当天零点，作为默认结束日期
func Today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}
