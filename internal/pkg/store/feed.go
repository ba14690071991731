package store

import (
	"context"
	log "log/slog"
	"sync"
	"sync/atomic"
)

type loader func(ctx context.Context, path string) (Snapshot, error)

// feed 管理一个后端上的全部订阅, 变更通知按路径关系分发
type feed struct {
	mu   sync.Mutex
	subs map[*watch]struct{}
	load loader
}

func newFeed(load loader) *feed {
	return &feed{subs: make(map[*watch]struct{}), load: load}
}

// watch 每个订阅独立的投递协程, kick 容量为 1, 多次变更合并为一次重新加载
type watch struct {
	path    string
	handler Handler
	feed    *feed
	kick    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
	once    sync.Once
}

func (f *feed) add(path string, h Handler) *watch {
	ctx, cancel := context.WithCancel(context.Background())
	w := &watch{
		path:    path,
		handler: h,
		feed:    f,
		kick:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	f.mu.Lock()
	f.subs[w] = struct{}{}
	f.mu.Unlock()

	w.poke()
	go w.run()
	return w
}

func (f *feed) remove(w *watch) {
	f.mu.Lock()
	delete(f.subs, w)
	f.mu.Unlock()
}

// notify changed 路径发生了写入或删除
func (f *feed) notify(changed string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for w := range f.subs {
		if Related(w.path, changed) {
			w.poke()
		}
	}
}

// closeAll 后端关闭时终止所有订阅
func (f *feed) closeAll() {
	f.mu.Lock()
	subs := make([]*watch, 0, len(f.subs))
	for w := range f.subs {
		subs = append(subs, w)
	}
	f.mu.Unlock()
	for _, w := range subs {
		w.Close()
	}
}

func (f *feed) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (w *watch) poke() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *watch) run() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.kick:
		}

		snap, err := w.feed.load(w.ctx, w.path)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			log.Error("store snapshot load failed", "path", w.path, "err", err)
			continue
		}
		if w.closed.Load() {
			return
		}
		w.handler(snap)
	}
}

// Close 之后不会再开始新的投递; 正在执行的 Handler 可能在 Close 返回后才结束
func (w *watch) Close() {
	w.once.Do(func() {
		w.closed.Store(true)
		w.cancel()
		w.feed.remove(w)
	})
}
