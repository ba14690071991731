package logger

import (
	"io"
	log "log/slog"
	"net"
	"os"
	"strings"
	"time"

	"Parley/internal/api/config"
	"Parley/internal/pkg/consts"
)

var LogWriter io.Writer = os.Stdout

// ParseLevel 未识别的级别按 info 处理
func ParseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

// InitLogger stdout 输出 JSON; 配置了 Logstash 地址时, 带 trace_id 或 session_id 的记录同时上报
func InitLogger(cfg config.LogConfig) {
	opts := &log.HandlerOptions{Level: ParseLevel(cfg.Level)}
	hStdout := log.NewJSONHandler(os.Stdout, opts)

	var finalHandler log.Handler = hStdout
	LogWriter = os.Stdout

	if cfg.Address != "" {
		conn, err := net.DialTimeout("tcp", cfg.Address, 3*time.Second)
		if err == nil {
			hRemote := log.NewJSONHandler(conn, opts).
				WithAttrs([]log.Attr{
					log.String("target_index", cfg.Index),
					log.String("log_token", cfg.Token),
				})

			finalHandler = NewTeeHandler(hStdout, NewRemoteFilterHandler(hRemote, TraceIDKey, consts.SessionIDKey))
			LogWriter = io.MultiWriter(os.Stdout, conn)
		} else {
			log.Warn("Failed to connect to Logstash, logging to stdout only", "addr", cfg.Address, "err", err)
		}
	}

	log.SetDefault(log.New(&ContextHandler{finalHandler}))
}
