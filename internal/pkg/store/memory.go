package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

type memNode struct {
	value json.RawMessage
	seq   uint64
}

// MemoryStore 进程内实时存储, 用于测试与单机开发
type MemoryStore struct {
	mu       sync.RWMutex
	nodes    map[string]*memNode
	children map[string]map[string]struct{}
	seq      uint64
	feed     *feed
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		nodes:    make(map[string]*memNode),
		children: make(map[string]map[string]struct{}),
	}
	s.feed = newFeed(s.load)
	return s
}

func (s *MemoryStore) Subscribe(_ context.Context, path string, h Handler) (Subscription, error) {
	if err := checkAll(&path); err != nil {
		return nil, err
	}
	return s.feed.add(path, h), nil
}

func (s *MemoryStore) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := checkAll(&path); err != nil {
		return Snapshot{}, err
	}
	return s.load(ctx, path)
}

func (s *MemoryStore) load(_ context.Context, path string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{Path: path}
	keys := s.children[path]
	if len(keys) == 0 {
		return snap, nil
	}
	type entry struct {
		key string
		n   *memNode
	}
	entries := make([]entry, 0, len(keys))
	for k := range keys {
		entries = append(entries, entry{k, s.nodes[Join(path, k)]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].n.seq < entries[j].n.seq })

	snap.Children = make([]Child, 0, len(entries))
	for _, e := range entries {
		snap.Children = append(snap.Children, Child{Key: e.key, Value: e.n.value})
	}
	return snap, nil
}

func (s *MemoryStore) Set(_ context.Context, path string, value any) error {
	if err := checkAll(&path); err != nil {
		return err
	}
	raw, err := encode(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.put(path, raw)
	s.mu.Unlock()

	s.feed.notify(path)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, path string, fields map[string]any) error {
	if err := checkAll(&path); err != nil {
		return err
	}

	s.mu.Lock()
	n, ok := s.nodes[path]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	merged, err := merge(n.value, fields)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	n.value = merged
	s.mu.Unlock()

	s.feed.notify(path)
	return nil
}

// put 调用方持有写锁; 已存在的节点保留原有顺序
func (s *MemoryStore) put(path string, raw json.RawMessage) {
	if n, ok := s.nodes[path]; ok {
		n.value = raw
		return
	}
	s.seq++
	s.nodes[path] = &memNode{value: raw, seq: s.seq}
	parent, key := Split(path)
	if s.children[parent] == nil {
		s.children[parent] = make(map[string]struct{})
	}
	s.children[parent][key] = struct{}{}
}

func (s *MemoryStore) Remove(_ context.Context, path string) error {
	if err := checkAll(&path); err != nil {
		return err
	}

	s.mu.Lock()
	removed := false
	for p := range s.nodes {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(s.nodes, p)
			parent, key := Split(p)
			delete(s.children[parent], key)
			if len(s.children[parent]) == 0 {
				delete(s.children, parent)
			}
			removed = true
		}
	}
	s.mu.Unlock()

	if removed {
		s.feed.notify(path)
	}
	return nil
}

func (s *MemoryStore) Push(_ context.Context, path string) (string, error) {
	if err := checkAll(&path); err != nil {
		return "", err
	}
	return Join(path, NewPushKey()), nil
}

func (s *MemoryStore) Close() error {
	s.feed.closeAll()
	return nil
}
