package eastmoney

import (
	"strconv"
	"strings"
	"time"

	"stockdl/pkg/core"
)

// kline 字符串格式（fields2=f51..f57）：
//
//	日线/周线: "2022-01-04,16.66,17.20,17.35,16.52,2181632,3.72e9"
//	分钟线:    "2022-01-04 09:31,16.66,16.70,16.71,16.65,12163,2.03e7"
//
// 字段顺序为 时间,开,收,高,低,量,额。
const (
	dailyLayout  = "2006-01-02"
	minuteLayout = "2006-01-02 15:04"
)

func parseKline(symbol string, g core.Granularity, line string) (core.Bar, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 7 {
		return core.Bar{}, &core.InvalidRequestError{
			Symbol: symbol,
			Reason: "kline 字段数不足: " + line,
		}
	}

	layout := dailyLayout
	if g == core.GranularityMinute {
		layout = minuteLayout
	}
	ts, err := time.ParseInLocation(layout, fields[0], time.Local)
	if err != nil {
		return core.Bar{}, &core.InvalidRequestError{
			Symbol: symbol,
			Reason: "kline 时间无法解析: " + fields[0],
		}
	}

	open, err := parseFloat(fields[1])
	close_, err2 := parseFloat(fields[2])
	high, err3 := parseFloat(fields[3])
	low, err4 := parseFloat(fields[4])
	volume, err5 := parseInt(fields[5])
	amount, err6 := parseFloat(fields[6])
	for _, e := range []error{err, err2, err3, err4, err5, err6} {
		if e != nil {
			// 数值残缺的行整体报错，绝不落成全零的假K线
			return core.Bar{}, &core.InvalidRequestError{
				Symbol: symbol,
				Reason: "kline 数值无法解析: " + line,
			}
		}
	}

	return core.Bar{
		Symbol:      symbol,
		Granularity: g,
		Timestamp:   ts,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       close_,
		Volume:      volume,
		Amount:      amount,
	}, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	// 部分接口返回科学计数法的量
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
