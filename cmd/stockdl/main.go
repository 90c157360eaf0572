package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/robfig/cron/v3"

	"stockdl/pkg/config"
	"stockdl/pkg/core"
	"stockdl/pkg/downloader"
	"stockdl/pkg/logger"
	"stockdl/pkg/mirror"
	"stockdl/pkg/progress"
	"stockdl/pkg/storage"
)

var (
	configPath = flag.String("config", "", "配置文件路径")
	startDate  = flag.String("start", "", "开始日期 YYYYMMDD（默认 20200101）")
	endDate    = flag.String("end", "", "结束日期 YYYYMMDD（默认今天）")
	threads    = flag.Int("threads", 0, "下载协程数 (1-300)")
	dbDSN      = flag.String("db", "", "SQLite 文件路径或 postgres:// 连接串")
	cronSpec   = flag.String("cron", "", "定时增量同步的 cron 表达式（留空只跑一次）")
	logLevel   = flag.String("log-level", "info", "日志级别 (debug, info, warn, error)")
	logFormat  = flag.String("log-format", "text", "日志格式 (json or text)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "用法: %s [选项] 股票代码...\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "示例: stockdl -start 20220101 -end 20220301 -threads 5 sz000001 sz000002")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger.Init(logger.Config{Level: *logLevel, Format: *logFormat})
	log := logger.WithComponent("stockdl")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *threads > 0 {
		cfg.Download.Concurrency = *threads
	}
	if *dbDSN != "" {
		cfg.Storage.DSN = *dbDSN
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("配置无效: %v", err)
	}

	reqs, err := buildRequests(flag.Args(), *startDate, *endDate)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(reqs) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("收到退出信号，取消剩余任务")
		cancel()
	}()

	store, err := storage.Open(ctx, cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("打开存储失败: %v", err)
	}
	defer store.Close()

	var opts []downloader.Option
	sinks := progress.MultiSink{progress.NewLogSink()}
	if cfg.Progress.RedisAddr != "" {
		rs, err := progress.NewRedisSink(ctx, progress.RedisSinkConfig{
			Addr:     cfg.Progress.RedisAddr,
			Password: cfg.Progress.RedisPassword,
			DB:       cfg.Progress.RedisDB,
			Stream:   cfg.Progress.Stream,
		})
		if err != nil {
			log.Fatalf("连接 Redis 失败: %v", err)
		}
		sinks = append(sinks, rs)
	}
	defer sinks.Close()
	opts = append(opts, downloader.WithProgressSink(sinks))

	if cfg.Mirror.URL != "" {
		mw := mirror.NewInfluxWriter(mirror.InfluxConfig{
			URL:    cfg.Mirror.URL,
			Token:  cfg.Mirror.Token,
			Org:    cfg.Mirror.Org,
			Bucket: cfg.Mirror.Bucket,
		})
		defer mw.Close()
		opts = append(opts, downloader.WithMirror(mw))
	}

	orch := downloader.NewOrchestrator(downloader.NewFetcher(cfg), store, opts...)

	runOnce := func() {
		results, err := orch.Run(ctx, reqs, cfg.Download.Concurrency)
		if err != nil {
			log.Errorf("运行失败: %v", err)
			return
		}
		printSummary(results)
	}

	runOnce()

	if *cronSpec != "" {
		c := cron.New()
		if _, err := c.AddFunc(*cronSpec, runOnce); err != nil {
			log.Fatalf("无效的 cron 表达式 %q: %v", *cronSpec, err)
		}
		c.Start()
		log.Infof("定时同步已启动: %s", *cronSpec)
		<-ctx.Done()
		<-c.Stop().Done()
	}
}

// buildRequests 规范化代码并构造下载请求（去重，保持输入顺序）
func buildRequests(codes []string, startStr, endStr string) ([]core.DownloadRequest, error) {
	start := core.DefaultStart()
	end := core.Today()
	var err error
	if startStr != "" {
		if start, err = core.ParseDate(startStr); err != nil {
			return nil, err
		}
	}
	if endStr != "" {
		if end, err = core.ParseDate(endStr); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool)
	var reqs []core.DownloadRequest
	for _, c := range codes {
		symbol := core.NormalizeSymbol(c)
		if symbol == "" {
			return nil, fmt.Errorf("无法识别的股票代码: %q", c)
		}
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		reqs = append(reqs, core.DownloadRequest{
			Symbol:        symbol,
			Start:         start,
			End:           end,
			Granularities: core.AllGranularities(),
		})
	}
	return reqs, nil
}

func printSummary(results map[string]*core.DownloadResult) {
	symbols := make([]string, 0, len(results))
	for s := range results {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	totalRows, failed := 0, 0
	fmt.Println()
	for _, s := range symbols {
		r := results[s]
		totalRows += r.RowsWritten
		switch r.Status {
		case core.UnitSuccess:
			fmt.Printf("  %s  %-7s  %d 行\n", s, r.Status, r.RowsWritten)
		default:
			failed++
			fmt.Printf("  %s  %-7s  %d 行  %v\n", s, r.Status, r.RowsWritten, r.FirstError())
		}
	}
	fmt.Printf("\n共 %d 只股票，写入 %d 行，%d 只存在失败\n", len(symbols), totalRows, failed)
}
