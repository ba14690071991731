package service

import (
	"context"
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"Parley/internal/pkg/identity"
	"Parley/internal/pkg/store"
)

type hubEntry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// Hub 会话 id 到 Controller 的映射, 每个浏览器标签页一个会话
type Hub struct {
	store    store.Store
	provider identity.Provider
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*hubEntry
}

func NewHub(st store.Store, provider identity.Provider) *Hub {
	return &Hub{
		store:    st,
		provider: provider,
		now:      time.Now,
		sessions: make(map[string]*hubEntry),
	}
}

// Provider 会话使用的身份提供方
func (h *Hub) Provider() identity.Provider {
	return h.provider
}

// Create 新建一个未登录的会话
func (h *Hub) Create() (string, *Controller) {
	id := uuid.NewString()
	ctrl := NewController(h.store, h.provider)

	h.mu.Lock()
	h.sessions[id] = &hubEntry{ctrl: ctrl, lastSeen: h.now()}
	h.mu.Unlock()
	return id, ctrl
}

// Get 查找会话并刷新最近访问时间
func (h *Hub) Get(id string) (*Controller, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = h.now()
	return e.ctrl, nil
}

// Remove 登出并停止会话, 不存在的会话返回 ErrSessionNotFound
func (h *Hub) Remove(ctx context.Context, id string) error {
	h.mu.Lock()
	e, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	h.shutdown(ctx, id, e.ctrl)
	return nil
}

// Reap 回收空闲超过 idle 的会话, 返回回收数量
func (h *Hub) Reap(ctx context.Context, idle time.Duration) int {
	deadline := h.now().Add(-idle)

	h.mu.Lock()
	expired := make(map[string]*Controller)
	for id, e := range h.sessions {
		if e.lastSeen.Before(deadline) {
			expired[id] = e.ctrl
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for id, ctrl := range expired {
		h.shutdown(ctx, id, ctrl)
	}
	if len(expired) > 0 {
		log.InfoContext(ctx, "idle sessions reaped", "count", len(expired), "remaining", h.Len())
	}
	return len(expired)
}

// CloseAll 进程退出时调用, 尽力把每个会话的在线标记写回 false
func (h *Hub) CloseAll(ctx context.Context) {
	h.mu.Lock()
	all := h.sessions
	h.sessions = make(map[string]*hubEntry)
	h.mu.Unlock()

	var wg sync.WaitGroup
	for id, e := range all {
		wg.Add(1)
		go func(id string, ctrl *Controller) {
			defer wg.Done()
			h.shutdown(ctx, id, ctrl)
		}(id, e.ctrl)
	}
	wg.Wait()
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) shutdown(ctx context.Context, id string, ctrl *Controller) {
	if err := ctrl.SignOut(ctx); err != nil {
		log.WarnContext(ctx, "session sign-out failed", "session_id", id, "err", err)
	}
	ctrl.Stop()
}
