package store

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"regexp"
	"time"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoNode 每个路径一个文档, 值以 JSON 文本保存, rev 用于乐观锁
type mongoNode struct {
	Path   string `bson:"_id"`
	Parent string `bson:"parent"`
	Key    string `bson:"key"`
	JSON   string `bson:"json"`
	Seq    int64  `bson:"seq"`
	Rev    int64  `bson:"rev"`
}

// MongoStore 基于 MongoDB 的实时存储, 其他实例的写入通过 change stream 感知
type MongoStore struct {
	col      *mongo.Collection
	counters *mongo.Collection
	feed     *feed
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewMongoStore 建索引并启动 change stream 监听
func NewMongoStore(ctx context.Context, db *mongo.Database, collection string) (*MongoStore, error) {
	s := newMongoStore(db, collection)

	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parent", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.watch(watchCtx)

	return s, nil
}

// newMongoStore 不访问服务端, 没有跨实例通知
func newMongoStore(db *mongo.Database, collection string) *MongoStore {
	s := &MongoStore{
		col:      db.Collection(collection),
		counters: db.Collection(collection + "_counters"),
	}
	s.feed = newFeed(s.load)
	return s
}

// watch change stream 需要副本集, 不可用时退化为仅本实例内通知
func (s *MongoStore) watch(ctx context.Context) {
	defer close(s.done)
	backoff := time.Second
	for {
		cs, err := s.col.Watch(ctx, mongo.Pipeline{})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("MongoDB change stream unavailable, retrying", "err", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < time.Minute {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for cs.Next(ctx) {
			var evt struct {
				DocumentKey struct {
					ID string `bson:"_id"`
				} `bson:"documentKey"`
			}
			if err := cs.Decode(&evt); err != nil {
				log.Error("MongoDB change event decode failed", "err", err)
				continue
			}
			if evt.DocumentKey.ID != "" {
				s.feed.notify(evt.DocumentKey.ID)
			}
		}
		err = cs.Err()
		_ = cs.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		log.Warn("MongoDB change stream interrupted", "err", err)
	}
}

func (s *MongoStore) Subscribe(_ context.Context, path string, h Handler) (Subscription, error) {
	if err := checkAll(&path); err != nil {
		return nil, err
	}
	return s.feed.add(path, h), nil
}

func (s *MongoStore) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := checkAll(&path); err != nil {
		return Snapshot{}, err
	}
	return s.load(ctx, path)
}

func (s *MongoStore) load(ctx context.Context, path string) (Snapshot, error) {
	cursor, err := s.col.Find(ctx, bson.M{"parent": path}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return Snapshot{}, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var nodes []mongoNode
	if err := cursor.All(ctx, &nodes); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Path: path, Children: make([]Child, 0, len(nodes))}
	for _, n := range nodes {
		snap.Children = append(snap.Children, Child{Key: n.Key, Value: json.RawMessage(n.JSON)})
	}
	return snap, nil
}

func (s *MongoStore) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		N int64 `bson:"n"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "seq"},
		bson.M{"$inc": bson.M{"n": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter.N, err
}

func (s *MongoStore) Set(ctx context.Context, path string, value any) error {
	if err := checkAll(&path); err != nil {
		return err
	}
	raw, err := encode(value)
	if err != nil {
		return err
	}
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return err
	}
	parent, key := Split(path)
	_, err = s.col.UpdateOne(ctx,
		bson.M{"_id": path},
		bson.M{
			"$set":         bson.M{"parent": parent, "key": key, "json": string(raw)},
			"$inc":         bson.M{"rev": 1},
			"$setOnInsert": bson.M{"seq": seq},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return err
	}
	s.feed.notify(path)
	return nil
}

func (s *MongoStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := checkAll(&path); err != nil {
		return err
	}
	for i := 0; i < updateRetries; i++ {
		var current mongoNode
		err := s.col.FindOne(ctx, bson.M{"_id": path}).Decode(&current)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		merged, err := merge(json.RawMessage(current.JSON), fields)
		if err != nil {
			return err
		}
		// 不带 upsert, rev 不匹配或记录已删除时 MatchedCount 为 0, 重读决定重试还是 ErrNotFound
		res, err := s.col.UpdateOne(ctx,
			bson.M{"_id": path, "rev": current.Rev},
			bson.M{"$set": bson.M{"json": string(merged)}, "$inc": bson.M{"rev": 1}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 1 {
			s.feed.notify(path)
			return nil
		}
	}
	return fmt.Errorf("update %s: concurrent modification", path)
}

func (s *MongoStore) Remove(ctx context.Context, path string) error {
	if err := checkAll(&path); err != nil {
		return err
	}
	_, err := s.col.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"_id": path},
		bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(path) + "/"}},
	}})
	if err != nil {
		return err
	}
	s.feed.notify(path)
	return nil
}

func (s *MongoStore) Push(_ context.Context, path string) (string, error) {
	if err := checkAll(&path); err != nil {
		return "", err
	}
	return Join(path, NewPushKey()), nil
}

func (s *MongoStore) Close() error {
	s.feed.closeAll()
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}
