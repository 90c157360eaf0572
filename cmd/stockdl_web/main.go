package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"stockdl/pkg/config"
	"stockdl/pkg/core"
	"stockdl/pkg/downloader"
	"stockdl/pkg/logger"
	"stockdl/pkg/storage"
)

var (
	configPath = flag.String("config", "", "配置文件路径")
	listenAddr = flag.String("listen", ":8080", "HTTP 监听地址")
	dbDSN      = flag.String("db", "", "SQLite 文件路径或 postgres:// 连接串")
	ginMode    = flag.String("mode", "release", "gin 运行模式 (debug, release, test)")
	logLevel   = flag.String("log-level", "info", "日志级别 (debug, info, warn, error)")
	logFormat  = flag.String("log-format", "text", "日志格式 (json or text)")
)

func main() {
	flag.Parse()

	logger.Init(logger.Config{Level: *logLevel, Format: *logFormat})
	log := logger.WithComponent("stockdl_web")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *dbDSN != "" {
		cfg.Storage.DSN = *dbDSN
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("打开存储失败: %v", err)
	}
	defer store.Close()

	srv := newServer(cfg, store)

	gin.SetMode(*ginMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/", srv.index)
	router.GET("/health", srv.health)
	router.POST("/download", srv.download)

	httpSrv := &http.Server{
		Addr:    *listenAddr,
		Handler: router,
	}

	go func() {
		log.Infof("Web 表单已启动: %s", *listenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务失败: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("收到退出信号，正在关闭")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("关闭 HTTP 服务失败: %v", err)
	}
}

type server struct {
	cfg   *config.Config
	store storage.BarStore
	orch  *downloader.Orchestrator
}

func newServer(cfg *config.Config, store storage.BarStore) *server {
	return &server{
		cfg:   cfg,
		store: store,
		orch:  downloader.NewOrchestrator(downloader.NewFetcher(cfg), store),
	}
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *server) index(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, fmt.Sprintf(formHTML, "20200101", core.Today().Format(core.DateLayout)))
}

const formHTML = `<!doctype html>
<title>股票数据下载</title>
<h1>下载历史行情</h1>
<form method="post" enctype="multipart/form-data" action="/download">
  <label>股票代码（数字，用 ; 分隔）:</label><br>
  <input type="text" name="codes" style="width:300px"><br><br>
  <label>或上传CSV文件（代码,名称）:</label>
  <input type="file" name="file"><br><br>
  <label>开始日期 YYYYMMDD:</label>
  <input type="text" name="start" value="%s"><br>
  <label>结束日期 YYYYMMDD:</label>
  <input type="text" name="end" value="%s"><br><br>
  <input type="submit" value="下载">
</form>
`

type downloadSummary struct {
	Symbol string `json:"symbol"`
	Status string `json:"status"`
	Rows   int    `json:"rows"`
	Error  string `json:"error,omitempty"`
}

func (s *server) download(c *gin.Context) {
	codes := parseCodesField(c.PostForm("codes"))

	if fh, err := c.FormFile("file"); err == nil && fh != nil {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败: " + err.Error()})
			return
		}
		defer f.Close()
		uploaded, err := parseCodeCSV(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "解析CSV失败: " + err.Error()})
			return
		}
		codes = append(codes, uploaded...)
	}

	reqs, err := buildRequests(codes, c.DefaultPostForm("start", "20200101"), c.PostForm("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(reqs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "没有有效的股票代码"})
		return
	}

	results, err := s.orch.Run(c.Request.Context(), reqs, s.cfg.Download.Concurrency)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	summary := make([]downloadSummary, 0, len(results))
	totalRows := 0
	for _, r := range results {
		item := downloadSummary{
			Symbol: r.Symbol,
			Status: string(r.Status),
			Rows:   r.RowsWritten,
		}
		if err := r.FirstError(); err != nil {
			item.Error = err.Error()
		}
		totalRows += r.RowsWritten
		summary = append(summary, item)
	}
	c.JSON(http.StatusOK, gin.H{
		"stocks": len(summary),
		"rows":   totalRows,
		"detail": summary,
	})
}

func buildRequests(codes []string, startStr, endStr string) ([]core.DownloadRequest, error) {
	start, err := core.ParseDate(startStr)
	if err != nil {
		return nil, err
	}
	end := core.Today()
	if endStr != "" {
		if end, err = core.ParseDate(endStr); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool)
	var reqs []core.DownloadRequest
	for _, code := range codes {
		symbol := core.NormalizeSymbol(code)
		if symbol == "" {
			// 表单里混进的非法代码直接忽略，不让一条坏数据挡住整批
			continue
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
