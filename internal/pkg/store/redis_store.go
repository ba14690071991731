package store

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sort"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const updateRetries = 8

// RedisStore 每个集合对应一个 HASH(子 key -> JSON) 与一个 ZSET(首次写入序号),
// 写入后在变更频道上发布路径, 由所有实例的监听协程分发给相关订阅
type RedisStore struct {
	rdb     *redis.Client
	prefix  string
	channel string
	feed    *feed
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRedisStore 建立变更频道订阅并启动监听协程
func NewRedisStore(ctx context.Context, rdb *redis.Client, prefix string) (*RedisStore, error) {
	s := &RedisStore{
		rdb:     rdb,
		prefix:  prefix,
		channel: prefix + ":changes",
		done:    make(chan struct{}),
	}
	s.feed = newFeed(s.load)

	pubsub := rdb.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.pubsub = pubsub

	listenCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.listen(listenCtx)

	log.Info("Redis live store ready", "channel", s.channel)
	return s, nil
}

func (s *RedisStore) hashKey(path string) string  { return s.prefix + ":h:" + path }
func (s *RedisStore) orderKey(path string) string { return s.prefix + ":o:" + path }
func (s *RedisStore) seqKey() string              { return s.prefix + ":seq" }

func (s *RedisStore) listen(ctx context.Context) {
	defer close(s.done)
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.feed.notify(msg.Payload)
		}
	}
}

func (s *RedisStore) Subscribe(_ context.Context, path string, h Handler) (Subscription, error) {
	if err := checkAll(&path); err != nil {
		return nil, err
	}
	return s.feed.add(path, h), nil
}

func (s *RedisStore) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := checkAll(&path); err != nil {
		return Snapshot{}, err
	}
	return s.load(ctx, path)
}

func (s *RedisStore) load(ctx context.Context, path string) (Snapshot, error) {
	pipe := s.rdb.Pipeline()
	valuesCmd := pipe.HGetAll(ctx, s.hashKey(path))
	orderCmd := pipe.ZRange(ctx, s.orderKey(path), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Snapshot{}, err
	}

	values := valuesCmd.Val()
	snap := Snapshot{Path: path, Children: make([]Child, 0, len(values))}
	seen := make(map[string]struct{}, len(values))
	for _, key := range orderCmd.Val() {
		raw, ok := values[key]
		if !ok {
			continue
		}
		seen[key] = struct{}{}
		snap.Children = append(snap.Children, Child{Key: key, Value: json.RawMessage(raw)})
	}

	// 顺序集合缺失的成员追加在末尾, 按 key 排序
	var orphans []string
	for key := range values {
		if _, ok := seen[key]; !ok {
			orphans = append(orphans, key)
		}
	}
	sort.Strings(orphans)
	for _, key := range orphans {
		snap.Children = append(snap.Children, Child{Key: key, Value: json.RawMessage(values[key])})
	}
	return snap, nil
}

func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	if err := checkAll(&path); err != nil {
		return err
	}
	raw, err := encode(value)
	if err != nil {
		return err
	}

	seq, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return err
	}
	parent, key := Split(path)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.hashKey(parent), key, string(raw))
		pipe.ZAddNX(ctx, s.orderKey(parent), redis.Z{Score: float64(seq), Member: key})
		return nil
	})
	if err != nil {
		return err
	}
	return s.publish(ctx, path)
}

// Update 使用 WATCH 乐观锁做读改写, 并发修改同一记录的不同字段不会互相覆盖.
// 记录在事务期间被删除时 EXEC 失败, 重读后返回 ErrNotFound
func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := checkAll(&path); err != nil {
		return err
	}
	parent, key := Split(path)
	hkey := s.hashKey(parent)

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, hkey, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		merged, err := merge(current, fields)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hkey, key, string(merged))
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < updateRetries; i++ {
		err = s.rdb.Watch(ctx, txf, hkey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		return s.publish(ctx, path)
	}
	return fmt.Errorf("update %s: %w", path, err)
}

func (s *RedisStore) Remove(ctx context.Context, path string) error {
	if err := checkAll(&path); err != nil {
		return err
	}
	parent, key := Split(path)

	// 子树下的集合
	var nested []string
	for _, pattern := range []string{s.hashKey(path) + "/*", s.orderKey(path) + "/*"} {
		iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			nested = append(nested, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.hashKey(parent), key)
		pipe.ZRem(ctx, s.orderKey(parent), key)
		pipe.Del(ctx, append([]string{s.hashKey(path), s.orderKey(path)}, nested...)...)
		return nil
	})
	if err != nil {
		return err
	}
	return s.publish(ctx, path)
}

func (s *RedisStore) Push(_ context.Context, path string) (string, error) {
	if err := checkAll(&path); err != nil {
		return "", err
	}
	return Join(path, NewPushKey()), nil
}

// publish 本地立即通知, 其他实例通过频道收到
func (s *RedisStore) publish(ctx context.Context, path string) error {
	s.feed.notify(path)
	return s.rdb.Publish(ctx, s.channel, path).Err()
}

func (s *RedisStore) Close() error {
	s.feed.closeAll()
	s.cancel()
	err := s.pubsub.Close()
	<-s.done
	return err
}
