package service

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/store"
)

// ThreadHandler 收到某一代订阅的消息快照
type ThreadHandler func(gen uint64, key string, messages []model.Message)

// ThreadStore 当前会话消息集合的实时镜像. 非并发安全, 由 Controller 的事件循环独占
type ThreadStore struct {
	mirror
	now func() time.Time

	self        string
	counterpart string
	key         string
	gen         uint64
	messages    []model.Message
}

func NewThreadStore(st store.Store) *ThreadStore {
	return &ThreadStore{mirror: mirror{store: st}, now: time.Now}
}

// Open 先拆除上一个会话的订阅再订阅新的, 返回新订阅的代号
func (t *ThreadStore) Open(ctx context.Context, self, counterpart string, h ThreadHandler) (uint64, error) {
	t.Close()

	t.gen++
	gen := t.gen
	key := ConversationKey(self, counterpart)
	err := t.open(ctx, store.Join(consts.MessagesPath, key), func(snap store.Snapshot) {
		h(gen, key, DecodeMessages(snap))
	})
	if err != nil {
		return 0, err
	}
	t.self, t.counterpart, t.key = self, counterpart, key
	return gen, nil
}

// Close 拆除订阅并清空会话
func (t *ThreadStore) Close() {
	t.close()
	t.self, t.counterpart, t.key = "", "", ""
	t.messages = nil
}

func (t *ThreadStore) Key() string { return t.key }

func (t *ThreadStore) Generation() uint64 { return t.gen }

// Apply 记录属于当前代的快照, 过期代的快照返回 false
func (t *ThreadStore) Apply(gen uint64, messages []model.Message) bool {
	if gen != t.gen || !t.active() {
		return false
	}
	t.messages = messages
	return true
}

func (t *ThreadStore) Messages() []model.Message { return t.messages }

// Send 写入消息并为双方各写一份最近消息预览
func (t *ThreadStore) Send(ctx context.Context, body string) (*model.Message, error) {
	if t.key == "" {
		return nil, ErrNoCounterpart
	}
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}

	path, err := t.store.Push(ctx, store.Join(consts.MessagesPath, t.key))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	_, id := store.Split(path)
	msg := model.NewMessage(id, t.self, body, t.now())

	if err := t.store.Set(ctx, path, msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	var errs []error
	for _, p := range []string{
		store.Join(consts.LastMessagesPath, t.self, t.counterpart),
		store.Join(consts.LastMessagesPath, t.counterpart, t.self),
	} {
		if err := t.store.Set(ctx, p, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		log.ErrorContext(ctx, "last message preview write failed", "key", t.key, "message_id", id, "err", errors.Join(errs...))
		return msg, fmt.Errorf("%w: %w", ErrStoreWrite, errors.Join(errs...))
	}
	return msg, nil
}

// Edit 只修改正文, id/发送者/时间/已读标记保持不变
func (t *ThreadStore) Edit(ctx context.Context, messageID, body string) error {
	if t.key == "" {
		return ErrNoCounterpart
	}
	if strings.TrimSpace(body) == "" {
		return ErrEmptyBody
	}
	if !t.contains(messageID) {
		return ErrMessageNotFound
	}
	err := t.store.Update(ctx, store.Join(consts.MessagesPath, t.key, messageID), map[string]any{
		model.FieldBody: body,
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	return nil
}

// Delete 删除不存在的消息不报错
func (t *ThreadStore) Delete(ctx context.Context, messageID string) error {
	if t.key == "" {
		return ErrNoCounterpart
	}
	if messageID == "" {
		return ErrParamInvalid
	}
	if err := t.store.Remove(ctx, store.Join(consts.MessagesPath, t.key, messageID)); err != nil {
		if errors.Is(err, store.ErrInvalidPath) {
			return ErrParamInvalid
		}
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	return nil
}

// MarkRead 把对方发来的未读消息标记为已读, 自己发的消息不动
func (t *ThreadStore) MarkRead(ctx context.Context) (int, error) {
	if t.key == "" {
		return 0, ErrNoCounterpart
	}
	flipped := 0
	var errs []error
	for _, m := range t.messages {
		if m.Read || m.SenderID == t.self {
			continue
		}
		err := t.store.Update(ctx, store.Join(consts.MessagesPath, t.key, m.ID), map[string]any{
			model.FieldRead: true,
		})
		if errors.Is(err, store.ErrNotFound) {
			// 快照之后已被对方删除
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		flipped++
	}
	if len(errs) > 0 {
		return flipped, fmt.Errorf("%w: %w", ErrStoreWrite, errors.Join(errs...))
	}
	return flipped, nil
}

func (t *ThreadStore) contains(messageID string) bool {
	for _, m := range t.messages {
		if m.ID == messageID {
			return true
		}
	}
	return false
}

// DecodeMessages 保持存储顺序, 结构不合法的消息被丢弃
func DecodeMessages(snap store.Snapshot) []model.Message {
	out := make([]model.Message, 0, snap.Len())
	for _, c := range snap.Children {
		msg, err := model.DecodeMessage(c.Key, c.Value)
		if err != nil {
			log.Error("drop message", "path", snap.Path, "err", err)
			continue
		}
		out = append(out, msg)
	}
	return out
}
