package store

import (
	"context"
	"errors"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var (
	ErrInvalidPath = errors.New("invalid store path")
	ErrNotObject   = errors.New("value at path is not an object")
	ErrNotFound    = errors.New("no value at path")
)

// Child 集合下的一个直接子节点
type Child struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Snapshot 某个路径下全部直接子节点, 按首次写入顺序排列
type Snapshot struct {
	Path     string
	Children []Child
}

func (s Snapshot) Len() int { return len(s.Children) }

// Lookup 按 key 查找子节点
func (s Snapshot) Lookup(key string) (json.RawMessage, bool) {
	for _, c := range s.Children {
		if c.Key == key {
			return c.Value, true
		}
	}
	return nil, false
}

// Handler 接收完整快照, 在订阅自己的投递协程上调用, 不应长时间阻塞
type Handler func(Snapshot)

// Subscription 实时订阅句柄, Close 可重复调用
type Subscription interface {
	Close()
}

// Store 托管实时数据服务的能力面
type Store interface {
	// Subscribe 订阅 path 的直接子节点, 立即投递一次初始快照
	Subscribe(ctx context.Context, path string, h Handler) (Subscription, error)
	// Get 一次性读取快照
	Get(ctx context.Context, path string) (Snapshot, error)
	// Set 整体覆盖 path 上的值
	Set(ctx context.Context, path string, value any) error
	// Update 合并对象值的指定字段, 路径上没有值时返回 ErrNotFound 且不创建记录
	Update(ctx context.Context, path string, fields map[string]any) error
	// Remove 删除 path 及其子树, 不存在时不报错
	Remove(ctx context.Context, path string) error
	// Push 在集合下分配一个全局唯一且按时间递增的子 key, 返回子路径
	Push(ctx context.Context, path string) (string, error)
	Close() error
}

// Join 拼接路径片段
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

// CleanPath 去掉首尾斜杠并校验每一段
func CleanPath(path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || strings.ContainsAny(seg, ".#$[]") {
			return "", ErrInvalidPath
		}
	}
	return path, nil
}

// Split 拆分为父路径与 key, 顶层节点的父路径为空
func Split(path string) (parent, key string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// Related 两条路径互为祖先、后代或相同时, 一方的变更会影响另一方的快照
func Related(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

// NewPushKey 时间有序的唯一 key
func NewPushKey() string {
	return uuid.Must(uuid.NewV7()).String()
}

func encode(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(value)
}

// merge 将 fields 合并进对象值, 原值为空时视为空对象
func merge(current json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if len(current) > 0 && string(current) != "null" {
		if err := json.Unmarshal(current, &obj); err != nil {
			return nil, ErrNotObject
		}
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		obj[k] = raw
	}
	return json.Marshal(obj)
}

func checkAll(paths ...*string) error {
	for _, p := range paths {
		clean, err := CleanPath(*p)
		if err != nil {
			return err
		}
		*p = clean
	}
	return nil
}
