package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"Parley/internal/api/config"
	"Parley/internal/pkg/logger"
)

var Rdb *redis.Client

// InitRedis 初始化 Redis 客户端连接并挂上日志 hook
func InitRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,

		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})
	rdb.AddHook(logger.NewRedisLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	Rdb = rdb
	return rdb, nil
}

// Close 进程退出时关闭连接池
func Close() error {
	if Rdb == nil {
		return nil
	}
	return Rdb.Close()
}
