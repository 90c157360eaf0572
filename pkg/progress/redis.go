package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"stockdl/pkg/logger"
)

// envelope Redis Stream 上的消息格式，消费方按 messageId 去重
type envelope struct {
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
	Producer  string `json:"producer"`
	DataType  string `json:"dataType"`
	Payload   Event  `json:"payload"`
}

// RedisSink 把进度事件发布到 Redis Stream，供外部消费方
// （Web 页面、采集器等）实时展示。
type RedisSink struct {
	client *redis.Client
	stream string
	log    *logger.Entry
}

// RedisSinkConfig Redis 进度上报配置
type RedisSinkConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// NewRedisSink 创建 Redis 进度上报器并探活
func NewRedisSink(ctx context.Context, cfg RedisSinkConfig) (*RedisSink, error) {
	if cfg.Stream == "" {
		cfg.Stream = "stockdl:progress"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisSink{
		client: client,
		stream: cfg.Stream,
		log:    logger.WithComponent("RedisProgress"),
	}, nil
}

// Publish 发布一条进度事件
func (s *RedisSink) Publish(ctx context.Context, ev Event) error {
	msg := envelope{
		MessageID: uuid.New().String(),
		Timestamp: time.Now().UnixMilli(),
		Producer:  "stockdl",
		DataType:  "download_progress",
		Payload:   ev,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		s.log.Warnf("进度发布失败: %v", err)
		return err
	}
	return nil
}

// Close 关闭 Redis 连接
func (s *RedisSink) Close() error {
	return s.client.Close()
}
