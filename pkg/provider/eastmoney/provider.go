package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"stockdl/pkg/core"
	"stockdl/pkg/logger"
)

// Provider 东方财富历史K线数据提供商。
// 走 push2his 的 qt/stock/kline 接口，和 AKShare 的
// stock_zh_a_hist 使用同一个后端。
type Provider struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	log        *logrus.Entry
}

// Option 提供商可选配置
type Option func(*Provider)

// WithTimeout 设置单次请求超时
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithUserAgent 设置用户代理
func WithUserAgent(ua string) Option {
	return func(p *Provider) { p.userAgent = ua }
}

// NewProvider 创建东方财富数据提供商
func NewProvider(baseURL string, opts ...Option) *Provider {
	if baseURL == "" {
		baseURL = "https://push2his.eastmoney.com"
	}
	p := &Provider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
				DisableKeepAlives:   false,
				MaxConnsPerHost:     10,
			},
			Timeout: 15 * time.Second,
		},
		userAgent: "StockDL/1.0",
		log:       logger.WithComponent("EastmoneyProvider"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name 返回提供商名称
func (p *Provider) Name() string {
	return "eastmoney"
}

// klt 接口的周期编码
func klt(g core.Granularity) string {
	switch g {
	case core.GranularityWeekly:
		return "102"
	case core.GranularityMinute:
		return "1"
	default:
		return "101"
	}
}

// secid 接口的市场前缀编码：sh→1，sz→0
func secid(symbol string) (string, error) {
	s := strings.ToLower(symbol)
	switch {
	case strings.HasPrefix(s, "sh"):
		return "1." + s[2:], nil
	case strings.HasPrefix(s, "sz"):
		return "0." + s[2:], nil
	}
	return "", &core.InvalidRequestError{Symbol: symbol, Reason: "代码缺少 sh/sz 前缀"}
}

// FetchHistory 获取历史K线
func (p *Provider) FetchHistory(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]core.Bar, error) {
	if !g.Valid() {
		return nil, &core.InvalidRequestError{Symbol: symbol, Reason: fmt.Sprintf("不支持的周期 %q", g)}
	}
	sid, err := secid(symbol)
	if err != nil {
		return nil, err
	}

	u, _ := url.Parse(p.baseURL)
	u.Path = "/api/qt/stock/kline/get"
	q := u.Query()
	q.Set("secid", sid)
	q.Set("klt", klt(g))
	q.Set("fqt", "1")
	q.Set("beg", start.Format(core.DateLayout))
	q.Set("end", end.Format(core.DateLayout))
	q.Set("fields1", "f1,f2,f3,f4,f5,f6")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56,f57")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	requestStart := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status 429", core.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("provider status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, &core.InvalidRequestError{
			Symbol: symbol,
			Reason: fmt.Sprintf("provider status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}

	bars, err := parseKlineResponse(symbol, g, body)
	if err != nil {
		return nil, err
	}

	p.log.Debugf("fetched %d bars for %s@%s in %v", len(bars), symbol, g, time.Since(requestStart))
	return bars, nil
}

// klineResponse 接口返回的外层结构
type klineResponse struct {
	Rc   int    `json:"rc"`
	Msg  string `json:"msg"`
	Data *struct {
		Code   string   `json:"code"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

func parseKlineResponse(symbol string, g core.Granularity, body []byte) ([]core.Bar, error) {
	var r klineResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, &core.InvalidRequestError{Symbol: symbol, Reason: "响应不是合法 JSON: " + err.Error()}
	}
	if r.Rc != 0 {
		return nil, &core.InvalidRequestError{Symbol: symbol, Reason: fmt.Sprintf("provider rc=%d msg=%s", r.Rc, r.Msg)}
	}
	if r.Data == nil {
		// data 为 null 通常意味着代码不存在
		return nil, &core.InvalidRequestError{Symbol: symbol, Reason: "未知的股票代码"}
	}

	bars := make([]core.Bar, 0, len(r.Data.Klines))
	for _, line := range r.Data.Klines {
		bar, err := parseKline(symbol, g, line)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
