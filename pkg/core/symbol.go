package core

import (
	"strings"
)

// NormalizeSymbol 把用户输入的代码规范化为 sh/sz 前缀形式。
// 纯数字代码按首位推断市场：6 开头为上交所，其余为深交所；
// 已带 sh/sz 前缀的原样返回（统一小写）。无法识别返回空串。
func NormalizeSymbol(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if strings.HasPrefix(code, "sh") || strings.HasPrefix(code, "sz") {
		digits := code[2:]
		if len(digits) == 6 && isDigits(digits) {
			return code
		}
		return ""
	}
	if !isDigits(code) || len(code) > 6 {
		return ""
	}
	for len(code) < 6 {
		code = "0" + code
	}
	if strings.HasPrefix(code, "6") {
		return "sh" + code
	}
	return "sz" + code
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
