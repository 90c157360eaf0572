package main

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// parseCodesField 解析表单文本框里 ; 分隔的代码列表
func parseCodesField(text string) []string {
	var codes []string
	for _, part := range strings.Split(text, ";") {
		if part = strings.TrimSpace(part); part != "" {
			codes = append(codes, part)
		}
	}
	return codes
}

// parseCodeCSV 解析上传的"代码,名称"两列文件，只取第一列。
// 行情软件导出的列表常是 GBK 编码，非 UTF-8 时先转码。
func parseCodeCSV(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(raw) {
		decoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), raw)
		if err == nil {
			raw = decoded
		}
	}

	var codes []string
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		code := strings.TrimSpace(fields[0])
		if code != "" {
			codes = append(codes, code)
		}
	}
	return codes, scanner.Err()
}
