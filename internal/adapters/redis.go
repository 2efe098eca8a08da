package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"live_analysis/internal/bootstrap"
)

type AdapterRedis struct {
	client *redis.Client
	cfg    *bootstrap.Config
	log    *zap.SugaredLogger
}

func NewAdapterRedis(cfg *bootstrap.Config, log *zap.SugaredLogger) *AdapterRedis {
	return &AdapterRedis{
		cfg: cfg,
		log: log,
	}
}

// Init connects to REDIS_URL, accepting either host:port or a redis:// URL.
func (a *AdapterRedis) Init(ctx context.Context) error {
	opts, err := redisOptions(a.cfg.RedisUrl)
	if err != nil {
		return err
	}
	a.client = redis.NewClient(opts)

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err = a.client.Ping(ctxPing).Err(); err != nil {
		return fmt.Errorf("ошибка подключения к Redis: %w", err)
	}

	a.log.Infow("connected to redis", "addr", opts.Addr)
	return nil
}

func redisOptions(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("REDIS_URL is empty")
	}
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: url, DB: 0}, nil
}

func (a *AdapterRedis) GetClient() *redis.Client {
	return a.client
}

func (a *AdapterRedis) Close(ctx context.Context) error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}
