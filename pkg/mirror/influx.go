package mirror

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"stockdl/pkg/core"
	"stockdl/pkg/logger"
)

// Writer 入库成功后的镜像写入端。镜像只是旁路，
// 失败由调用方记日志，不影响下载结果。
type Writer interface {
	WriteBars(ctx context.Context, bars []core.Bar) error
	Close() error
}

// InfluxWriter 把K线镜像到 InfluxDB，供图表工具直接查询
type InfluxWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      *logger.Entry
}

// InfluxConfig InfluxDB 连接配置
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// NewInfluxWriter 创建 InfluxDB 镜像写入端
func NewInfluxWriter(cfg InfluxConfig) *InfluxWriter {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxWriter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.WithComponent("InfluxMirror"),
	}
}

// WriteBars 按周期写入 bar_daily / bar_weekly / bar_minute 测点
func (w *InfluxWriter) WriteBars(ctx context.Context, bars []core.Bar) error {
	points := make([]*write.Point, 0, len(bars))
	for _, b := range bars {
		p := influxdb2.NewPointWithMeasurement("bar_" + string(b.Granularity)).
			AddTag("symbol", b.Symbol).
			AddField("open", b.Open).
			AddField("high", b.High).
			AddField("low", b.Low).
			AddField("close", b.Close).
			AddField("volume", b.Volume).
			AddField("amount", b.Amount).
			SetTime(b.Timestamp)
		points = append(points, p)
	}
	if err := w.writeAPI.WritePoint(ctx, points...); err != nil {
		return err
	}
	w.log.Debugf("mirrored %d bars", len(points))
	return nil
}

// Close 关闭 InfluxDB 客户端
func (w *InfluxWriter) Close() error {
	w.client.Close()
	return nil
}
