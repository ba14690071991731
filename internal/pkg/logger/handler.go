package logger

import (
	"context"
	"errors"
	log "log/slog"
	"slices"
)

// TeeHandler 把同一条记录写到多个输出, 各输出按自己的级别过滤
type TeeHandler struct {
	handlers []log.Handler
}

func NewTeeHandler(handlers ...log.Handler) *TeeHandler {
	return &TeeHandler{handlers: handlers}
}

func (t *TeeHandler) Enabled(ctx context.Context, level log.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle 某个输出失败不影响其余输出, 返回全部失败
func (t *TeeHandler) Handle(ctx context.Context, r log.Record) error {
	var errs []error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *TeeHandler) WithAttrs(attrs []log.Attr) log.Handler {
	return &TeeHandler{handlers: t.each(func(h log.Handler) log.Handler { return h.WithAttrs(attrs) })}
}

func (t *TeeHandler) WithGroup(name string) log.Handler {
	return &TeeHandler{handlers: t.each(func(h log.Handler) log.Handler { return h.WithGroup(name) })}
}

func (t *TeeHandler) each(fn func(log.Handler) log.Handler) []log.Handler {
	out := make([]log.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = fn(h)
	}
	return out
}

// RemoteFilterHandler 只上报能关联到请求或聊天会话的记录, 即带有任一 keys 属性的记录.
// 通过 WithAttrs 绑定的属性同样计入
type RemoteFilterHandler struct {
	next  log.Handler
	keys  []string
	bound bool
}

func NewRemoteFilterHandler(next log.Handler, keys ...string) *RemoteFilterHandler {
	return &RemoteFilterHandler{next: next, keys: keys}
}

func (f *RemoteFilterHandler) Enabled(ctx context.Context, level log.Level) bool {
	return f.next.Enabled(ctx, level)
}

func (f *RemoteFilterHandler) Handle(ctx context.Context, r log.Record) error {
	if !f.bound && !f.correlated(r) {
		return nil
	}
	return f.next.Handle(ctx, r)
}

func (f *RemoteFilterHandler) correlated(r log.Record) bool {
	found := false
	r.Attrs(func(a log.Attr) bool {
		if f.matches(a) {
			found = true
			return false
		}
		return true
	})
	return found
}

func (f *RemoteFilterHandler) matches(a log.Attr) bool {
	return slices.Contains(f.keys, a.Key) && a.Value.String() != ""
}

func (f *RemoteFilterHandler) WithAttrs(attrs []log.Attr) log.Handler {
	bound := f.bound || slices.ContainsFunc(attrs, f.matches)
	return &RemoteFilterHandler{next: f.next.WithAttrs(attrs), keys: f.keys, bound: bound}
}

// WithGroup 之后的属性带有组前缀, 不再参与匹配
func (f *RemoteFilterHandler) WithGroup(name string) log.Handler {
	return &RemoteFilterHandler{next: f.next.WithGroup(name), keys: f.keys, bound: f.bound}
}
