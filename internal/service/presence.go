package service

import (
	"context"
	log "log/slog"

	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/store"
)

// Presence presence 映射的实时镜像
type Presence struct {
	mirror
}

func NewPresence(st store.Store) *Presence {
	return &Presence{mirror{store: st}}
}

func (p *Presence) Open(ctx context.Context, onChange func(map[string]bool)) error {
	return p.open(ctx, consts.PresencePath, func(snap store.Snapshot) {
		onChange(DecodePresence(snap))
	})
}

func (p *Presence) Close() { p.close() }

func DecodePresence(snap store.Snapshot) map[string]bool {
	out := make(map[string]bool, snap.Len())
	for _, c := range snap.Children {
		online, err := model.DecodePresence(c.Key, c.Value)
		if err != nil {
			log.Error("drop presence flag", "err", err)
			continue
		}
		out[c.Key] = online
	}
	return out
}

// IsOnline 未知 id 视为离线
func IsOnline(flags map[string]bool, id string) bool {
	return flags[id]
}
