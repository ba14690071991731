package service

import (
	"context"
	log "log/slog"

	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/store"
)

// Directory users 集合的实时镜像, 每个快照整体替换
type Directory struct {
	mirror
}

func NewDirectory(st store.Store) *Directory {
	return &Directory{mirror{store: st}}
}

func (d *Directory) Open(ctx context.Context, onChange func([]model.Identity)) error {
	return d.open(ctx, consts.UsersPath, func(snap store.Snapshot) {
		onChange(DecodeDirectory(snap))
	})
}

func (d *Directory) Close() { d.close() }

// DecodeDirectory 保持存储返回的顺序, 结构不合法的记录被丢弃
func DecodeDirectory(snap store.Snapshot) []model.Identity {
	out := make([]model.Identity, 0, snap.Len())
	for _, c := range snap.Children {
		ident, err := model.DecodeIdentity(c.Key, c.Value)
		if err != nil {
			log.Error("drop directory entry", "err", err)
			continue
		}
		out = append(out, ident)
	}
	return out
}

// Contacts 除自己以外的全部身份, 不重新排序
func Contacts(all []model.Identity, selfID string) []model.Identity {
	out := make([]model.Identity, 0, len(all))
	for _, ident := range all {
		if ident.ID != selfID {
			out = append(out, ident)
		}
	}
	return out
}

// Lookup 在目录中按 id 查找
func Lookup(all []model.Identity, id string) (model.Identity, bool) {
	for _, ident := range all {
		if ident.ID == id {
			return ident, true
		}
	}
	return model.Identity{}, false
}
