package service

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"sync"

	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/identity"
	"Parley/internal/pkg/store"
)

// Session 当前登录身份, 可被持续观察
type Session struct {
	store    store.Store
	provider identity.Provider

	mu        sync.RWMutex
	current   *model.Identity
	observers map[int]func(*model.Identity)
	nextID    int
}

func NewSession(st store.Store, provider identity.Provider) *Session {
	return &Session{
		store:     st,
		provider:  provider,
		observers: make(map[int]func(*model.Identity)),
	}
}

// Current 当前身份, 未登录时为 nil
func (s *Session) Current() *model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	ident := *s.current
	return &ident
}

// Observe 身份每次变化都会回调, 回调运行在触发变化的协程上
func (s *Session) Observe(fn func(*model.Identity)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// SignIn 交给身份提供方完成交互式登录, 失败时不改变当前状态
func (s *Session) SignIn(ctx context.Context, credential string) (*model.Identity, error) {
	ident, err := s.provider.SignIn(ctx, credential)
	if err != nil {
		log.WarnContext(ctx, "sign-in rejected", "provider", s.provider.Name(), "err", err)
		return nil, fmt.Errorf("%w: %v", ErrSignInFailed, err)
	}
	if clean, err := store.CleanPath(ident.ID); err != nil || clean != ident.ID || strings.Contains(clean, "/") {
		return nil, fmt.Errorf("%w: unusable identity id %q", ErrSignInFailed, ident.ID)
	}
	if ident.DisplayName == "" {
		ident.DisplayName = consts.DefaultDisplayName
	}
	if ident.AvatarURL == "" {
		ident.AvatarURL = consts.DefaultAvatarURL
	}

	if err := s.store.Set(ctx, store.Join(consts.UsersPath, ident.ID), ident.Entry()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	if err := s.store.Set(ctx, store.Join(consts.PresencePath, ident.ID), true); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	// 写入都成功后才切换身份, 上一个身份只需要下线
	if prev := s.Current(); prev != nil && prev.ID != ident.ID {
		s.offline(ctx, prev.ID)
		log.InfoContext(ctx, "signed out", "user_id", prev.ID, "reason", "identity switched")
	}
	s.set(ident)
	log.InfoContext(ctx, "signed in", "user_id", ident.ID, "provider", s.provider.Name())
	out := *ident
	return &out, nil
}

// SignOut 会话结束钩子: 尽力把在线标记写为 false, 写入失败只记录日志
func (s *Session) SignOut(ctx context.Context) {
	prev := s.Current()
	if prev == nil {
		return
	}
	s.offline(ctx, prev.ID)
	s.set(nil)
	log.InfoContext(ctx, "signed out", "user_id", prev.ID)
}

func (s *Session) offline(ctx context.Context, userID string) {
	if err := s.store.Set(ctx, store.Join(consts.PresencePath, userID), false); err != nil {
		log.WarnContext(ctx, "presence reset failed", "user_id", userID, "err", err)
	}
}

func (s *Session) set(ident *model.Identity) {
	s.mu.Lock()
	s.current = ident
	fns := make([]func(*model.Identity), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		var cp *model.Identity
		if ident != nil {
			c := *ident
			cp = &c
		}
		fn(cp)
	}
}
