package logger

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSlow = 100 * time.Millisecond

// RedisLoggerHook 记录 redis 后端的慢命令与错误
type RedisLoggerHook struct{}

func NewRedisLogger() *RedisLoggerHook {
	return &RedisLoggerHook{}
}

// DialHook 记录建立连接的事件
func (s *RedisLoggerHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		if err != nil {
			log.ErrorContext(ctx, "Redis Dial Error",
				log.String("addr", addr),
				log.Duration("latency", time.Since(start)),
				log.Any("err", err),
			)
		}
		return conn, err
	}
}

// ProcessHook 记录普通单条命令执行情况
func (s *RedisLoggerHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		elapsed := time.Since(start)

		cmdName := cmd.Name()
		fields := []any{
			log.String("command", cmdName),
			log.String("args", redisArgs(cmd)),
			log.Duration("latency", elapsed),
		}

		switch {
		case err == nil:
			if elapsed > redisSlow {
				log.WarnContext(ctx, "Redis Slow", fields...)
			}
		case ignorable(cmdName, err):
		default:
			log.ErrorContext(ctx, "Redis Error", append(fields, log.Any("err", err))...)
		}
		return err
	}
}

// ProcessPipelineHook 记录管道/事务命令执行情况
func (s *RedisLoggerHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		elapsed := time.Since(start)

		if err == nil && elapsed < redisSlow {
			return nil
		}

		names := make([]string, 0, len(cmds))
		for _, c := range cmds {
			names = append(names, c.Name())
		}
		fields := []any{
			log.Int("cmd_count", len(cmds)),
			log.String("commands", strings.Join(names, ",")),
			log.Duration("latency", elapsed),
		}

		switch {
		case err == nil:
			log.WarnContext(ctx, "Redis Pipeline Slow", fields...)
		case errors.Is(err, redis.TxFailedErr):
			// 乐观锁冲突由调用方重试
			log.DebugContext(ctx, "Redis Tx Conflict", fields...)
		case !errors.Is(err, redis.Nil):
			log.ErrorContext(ctx, "Redis Pipeline Error", append(fields, log.Any("err", err))...)
		}
		return err
	}
}

func redisArgs(cmd redis.Cmder) string {
	switch cmd.Name() {
	case "auth", "hello":
		return "[PROTECTED]"
	}
	args := fmt.Sprint(cmd.Args())
	if len(args) > bodyLimit {
		return args[:bodyLimit] + "...[truncated]"
	}
	return args
}

func ignorable(cmdName string, err error) bool {
	if errors.Is(err, redis.Nil) || errors.Is(err, redis.TxFailedErr) || errors.Is(err, redis.ErrClosed) {
		return true
	}
	return cmdName == "client" && strings.Contains(err.Error(), "setinfo")
}
