package service

import (
	"context"
	log "log/slog"
	"sync"
	"sync/atomic"

	"Parley/internal/model"
	"Parley/internal/pkg/identity"
	"Parley/internal/pkg/store"
)

const eventBuffer = 64

// Controller 一个浏览器会话的聊天视图状态机.
// 所有状态变更都在单个事件循环协程里执行, 订阅回调和外部命令都以事件的形式进入循环
type Controller struct {
	session       *Session
	directory     *Directory
	presence      *Presence
	notifications *NotificationTracker
	thread        *ThreadStore

	ctx    context.Context
	cancel context.CancelFunc
	events chan func()
	quit   chan struct{}
	done   chan struct{}

	// state 只在事件循环中读写
	state chatState
	view  atomic.Pointer[ViewState]

	watchMu   sync.Mutex
	watchers  map[int]chan ViewState
	nextWatch int
	stopped   bool

	unobserve func()
	stopOnce  sync.Once
}

// NewController 创建并启动事件循环, 使用完毕必须调用 Stop
func NewController(st store.Store, provider identity.Provider) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		session:       NewSession(st, provider),
		directory:     NewDirectory(st),
		presence:      NewPresence(st),
		notifications: NewNotificationTracker(st),
		thread:        NewThreadStore(st),
		ctx:           ctx,
		cancel:        cancel,
		events:        make(chan func(), eventBuffer),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		state:         chatState{phase: PhaseNoIdentity},
		watchers:      make(map[int]chan ViewState),
	}
	initial := c.state.render()
	c.view.Store(&initial)

	c.unobserve = c.session.Observe(func(ident *model.Identity) {
		c.post(func() { c.onIdentity(ident) })
	})
	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			c.teardown()
			c.state = signedOut(c.state)
			c.publish()
			return
		case fn := <-c.events:
			fn()
		}
	}
}

// Stop 拆除全部订阅并关闭所有观察者通道, 可重复调用
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.unobserve()
		close(c.quit)
		<-c.done
		c.cancel()

		c.watchMu.Lock()
		c.stopped = true
		for id, ch := range c.watchers {
			close(ch)
			delete(c.watchers, id)
		}
		c.watchMu.Unlock()
	})
}

// post 投递订阅事件, 循环已停止时直接丢弃
func (c *Controller) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.quit:
	}
}

// call 在事件循环中同步执行 fn
func (c *Controller) call(ctx context.Context, fn func(ctx context.Context) error) error {
	reply := make(chan error, 1)
	ev := func() { reply <- fn(ctx) }

	select {
	case c.events <- ev:
	case <-c.quit:
		return ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrControllerStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SignIn 登录成功后返回时, 视图已进入 NO_SELECTION
func (c *Controller) SignIn(ctx context.Context, credential string) (*model.Identity, error) {
	ident, err := c.session.SignIn(ctx, credential)
	if err != nil {
		return nil, err
	}
	if err := c.call(ctx, func(context.Context) error { return nil }); err != nil {
		return nil, err
	}
	return ident, nil
}

// SignOut 任意阶段都回到 NO_IDENTITY
func (c *Controller) SignOut(ctx context.Context) error {
	c.session.SignOut(ctx)
	return c.call(ctx, func(context.Context) error { return nil })
}

// Identity 当前登录身份
func (c *Controller) Identity() *model.Identity {
	return c.session.Current()
}

// Select 打开与某个联系人的会话. 重复选择当前联系人不做任何事
func (c *Controller) Select(ctx context.Context, counterpartID string) error {
	return c.call(ctx, func(ctx context.Context) error {
		self := c.state.self
		if self == nil {
			return ErrNotSignedIn
		}
		if counterpartID == "" {
			return ErrParamInvalid
		}
		if counterpartID == self.ID {
			return ErrUnknownContact
		}
		if _, ok := Lookup(c.state.directory, counterpartID); !ok {
			return ErrUnknownContact
		}
		if c.state.phase == PhaseConversationOpen && c.state.counterpart == counterpartID {
			return nil
		}

		epoch := c.state.epoch
		gen, err := c.thread.Open(c.ctx, self.ID, counterpartID, func(gen uint64, key string, messages []model.Message) {
			c.post(func() { c.onThread(epoch, gen, key, messages) })
		})
		if err != nil {
			log.ErrorContext(ctx, "open thread failed", "user_id", self.ID, "counterpart", counterpartID, "err", err)
			c.state = c.state.withoutConversation()
			c.publish()
			return err
		}
		c.state = c.state.withConversation(counterpartID, c.thread.Key(), gen)
		c.publish()

		// 预览删除失败时会话仍保持打开, 错误交给调用方, 徽标会留到下次打开
		if err := c.notifications.Clear(ctx, self.ID, counterpartID); err != nil {
			log.WarnContext(ctx, "clear last message preview failed", "key", c.state.key, "err", err)
			return err
		}
		return nil
	})
}

// Send 向当前会话发送一条消息
func (c *Controller) Send(ctx context.Context, body string) (*model.Message, error) {
	var msg *model.Message
	err := c.call(ctx, func(ctx context.Context) error {
		if c.state.self == nil {
			return ErrNotSignedIn
		}
		var err error
		msg, err = c.thread.Send(ctx, body)
		return err
	})
	return msg, err
}

func (c *Controller) Edit(ctx context.Context, messageID, body string) error {
	return c.call(ctx, func(ctx context.Context) error {
		if c.state.self == nil {
			return ErrNotSignedIn
		}
		return c.thread.Edit(ctx, messageID, body)
	})
}

func (c *Controller) Delete(ctx context.Context, messageID string) error {
	return c.call(ctx, func(ctx context.Context) error {
		if c.state.self == nil {
			return ErrNotSignedIn
		}
		return c.thread.Delete(ctx, messageID)
	})
}

// State 最近一次发布的视图
func (c *Controller) State() ViewState {
	return *c.view.Load()
}

// Watch 每次状态变化推送一份视图; 通道容量为 1, 读取慢时只保留最新一份
func (c *Controller) Watch() (<-chan ViewState, func()) {
	ch := make(chan ViewState, 1)

	c.watchMu.Lock()
	if c.stopped {
		c.watchMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = ch
	ch <- *c.view.Load()
	c.watchMu.Unlock()

	return ch, func() {
		c.watchMu.Lock()
		defer c.watchMu.Unlock()
		if w, ok := c.watchers[id]; ok {
			close(w)
			delete(c.watchers, id)
		}
	}
}

func (c *Controller) onIdentity(ident *model.Identity) {
	if ident == nil {
		if c.state.self == nil {
			return
		}
		c.teardown()
		c.state = signedOut(c.state)
		c.publish()
		return
	}

	if c.state.self != nil {
		if c.state.self.ID == ident.ID {
			c.state.self = ident
			c.publish()
			return
		}
		c.teardown()
	}
	c.state = signedIn(c.state, ident)
	epoch := c.state.epoch

	if err := c.directory.Open(c.ctx, func(all []model.Identity) {
		c.post(func() {
			if c.state.epoch == epoch {
				c.state = c.state.withDirectory(all)
				c.publish()
			}
		})
	}); err != nil {
		log.Error("open directory failed", "user_id", ident.ID, "err", err)
	}
	if err := c.presence.Open(c.ctx, func(flags map[string]bool) {
		c.post(func() {
			if c.state.epoch == epoch {
				c.state = c.state.withPresence(flags)
				c.publish()
			}
		})
	}); err != nil {
		log.Error("open presence failed", "user_id", ident.ID, "err", err)
	}
	if err := c.notifications.Open(c.ctx, ident.ID, func(previews map[string]model.LastMessagePreview) {
		c.post(func() {
			if c.state.epoch == epoch {
				c.state = c.state.withPreviews(previews)
				c.publish()
			}
		})
	}); err != nil {
		log.Error("open notifications failed", "user_id", ident.ID, "err", err)
	}
	c.publish()
}

func (c *Controller) onThread(epoch, gen uint64, key string, messages []model.Message) {
	if epoch != c.state.epoch || gen != c.state.threadGen || key != c.state.key {
		log.Debug("drop stale thread snapshot", "key", key, "gen", gen)
		return
	}
	if !c.thread.Apply(gen, messages) {
		return
	}
	c.state = c.state.withMessages(messages)
	c.publish()

	if c.state.markPending {
		c.state.markPending = false
		n, err := c.thread.MarkRead(c.ctx)
		if err != nil {
			log.Warn("mark read failed", "key", key, "flipped", n, "err", err)
		}
	}
}

func (c *Controller) teardown() {
	c.thread.Close()
	c.notifications.Close()
	c.presence.Close()
	c.directory.Close()
}

func (c *Controller) publish() {
	c.state.version++
	v := c.state.render()
	c.view.Store(&v)

	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for _, ch := range c.watchers {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}
