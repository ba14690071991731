package service

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sort"

	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/store"
)

// NotificationTracker lastMessages/{self} 的实时镜像, 用于派生未读角标
type NotificationTracker struct {
	mirror
}

func NewNotificationTracker(st store.Store) *NotificationTracker {
	return &NotificationTracker{mirror{store: st}}
}

func (n *NotificationTracker) Open(ctx context.Context, self string, onChange func(map[string]model.LastMessagePreview)) error {
	return n.open(ctx, store.Join(consts.LastMessagesPath, self), func(snap store.Snapshot) {
		onChange(DecodePreviews(snap))
	})
}

func (n *NotificationTracker) Close() { n.close() }

// Clear 打开会话时删除双方的预览记录. 删除而非标记已读, 与既有行为一致
func (n *NotificationTracker) Clear(ctx context.Context, self, counterpart string) error {
	var errs []error
	for _, p := range []string{
		store.Join(consts.LastMessagesPath, self, counterpart),
		store.Join(consts.LastMessagesPath, counterpart, self),
	} {
		if err := n.store.Remove(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrStoreWrite, errors.Join(errs...))
	}
	return nil
}

// DecodePreviews 子节点 key 即对方 id
func DecodePreviews(snap store.Snapshot) map[string]model.LastMessagePreview {
	out := make(map[string]model.LastMessagePreview, snap.Len())
	for _, c := range snap.Children {
		p, err := model.DecodeMessage(c.Key, c.Value)
		if err != nil {
			log.Error("drop last message preview", "path", snap.Path, "err", err)
			continue
		}
		out[c.Key] = p
	}
	return out
}

// Unread 对方发来且未读的预览对应的对方 id, 升序
func Unread(previews map[string]model.LastMessagePreview, self string) []string {
	out := make([]string, 0, len(previews))
	for counterpart, p := range previews {
		if !p.Read && p.SenderID != self {
			out = append(out, counterpart)
		}
	}
	sort.Strings(out)
	return out
}
