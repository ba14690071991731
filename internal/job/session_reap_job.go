package job

import (
	"context"
	log "log/slog"
	"time"

	"Parley/internal/pkg/logger"
	"Parley/internal/service"
)

// SessionReapJob 回收空闲超过会话有效期的网关会话, 同时写回离线标记
type SessionReapJob struct {
	hub  *service.Hub
	idle time.Duration
}

func NewSessionReapJob(hub *service.Hub, idle time.Duration) *SessionReapJob {
	return &SessionReapJob{hub: hub, idle: idle}
}

func (s *SessionReapJob) Run() {
	ctx := logger.WithTraceID(context.Background(), "job-reap")
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n := s.hub.Reap(ctx, s.idle)
	log.InfoContext(ctx, "SessionReapJob finished", "reaped", n, "active", s.hub.Len())
}
