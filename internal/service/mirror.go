package service

import (
	"context"

	"Parley/internal/pkg/store"
)

// mirror 持有一个实时订阅, 重新打开前总是先关闭上一个
type mirror struct {
	store store.Store
	sub   store.Subscription
}

func (m *mirror) open(ctx context.Context, path string, h store.Handler) error {
	m.close()
	sub, err := m.store.Subscribe(ctx, path, h)
	if err != nil {
		return err
	}
	m.sub = sub
	return nil
}

func (m *mirror) close() {
	if m.sub != nil {
		m.sub.Close()
		m.sub = nil
	}
}

func (m *mirror) active() bool {
	return m.sub != nil
}
