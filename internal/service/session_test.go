package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/identity"
	"Parley/internal/pkg/store"
)

// brokenStore 所有写入都失败
type brokenStore struct {
	*store.MemoryStore
}

func (b brokenStore) Set(context.Context, string, any) error {
	return errors.New("write refused")
}

func TestSession_SignInWritesDirectoryAndPresence(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSession(st, identity.NewDevProvider())
	ctx := context.Background()

	var seen []*model.Identity
	cancel := s.Observe(func(ident *model.Identity) { seen = append(seen, ident) })
	defer cancel()

	ident, err := s.SignIn(ctx, "alice:Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", ident.ID)
	assert.Equal(t, consts.DefaultAvatarURL, ident.AvatarURL)

	users, err := st.Get(ctx, consts.UsersPath)
	require.NoError(t, err)
	raw, ok := users.Lookup("alice")
	require.True(t, ok)
	assert.JSONEq(t, `{"email":"alice@dev.local","displayName":"Alice","photoURL":"https://via.placeholder.com/150"}`, string(raw))

	presence, err := st.Get(ctx, consts.PresencePath)
	require.NoError(t, err)
	raw, ok = presence.Lookup("alice")
	require.True(t, ok)
	assert.JSONEq(t, "true", string(raw))

	require.Len(t, seen, 1)
	assert.Equal(t, "alice", seen[0].ID)
	assert.Equal(t, "alice", s.Current().ID)
}

func TestSession_SignOutClearsPresence(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSession(st, identity.NewDevProvider())
	ctx := context.Background()

	_, err := s.SignIn(ctx, "alice")
	require.NoError(t, err)
	s.SignOut(ctx)

	assert.Nil(t, s.Current())
	presence, err := st.Get(ctx, consts.PresencePath)
	require.NoError(t, err)
	raw, _ := presence.Lookup("alice")
	assert.JSONEq(t, "false", string(raw))

	// 未登录时再次登出不写任何东西
	s.SignOut(ctx)
}

func TestSession_RejectedCredentialKeepsState(t *testing.T) {
	s := NewSession(store.NewMemoryStore(), identity.NewDevProvider())

	_, err := s.SignIn(context.Background(), "  ")
	require.ErrorIs(t, err, ErrSignInFailed)
	assert.Nil(t, s.Current())
}

func TestSession_UnusableIdentityID(t *testing.T) {
	s := NewSession(store.NewMemoryStore(), identity.NewDevProvider())

	_, err := s.SignIn(context.Background(), "a/b")
	require.ErrorIs(t, err, ErrSignInFailed)
	assert.Nil(t, s.Current())
}

func TestSession_StoreFailureIsSignInFailure(t *testing.T) {
	s := NewSession(brokenStore{store.NewMemoryStore()}, identity.NewDevProvider())

	_, err := s.SignIn(context.Background(), "alice")
	require.ErrorIs(t, err, ErrStoreWrite)
	assert.Nil(t, s.Current())
}

// refusingStore 拒绝写入指定路径
type refusingStore struct {
	*store.MemoryStore
	path string
}

func (r refusingStore) Set(ctx context.Context, path string, value any) error {
	if path == r.path {
		return errors.New("write refused")
	}
	return r.MemoryStore.Set(ctx, path, value)
}

func TestSession_FailedSwitchKeepsPreviousIdentity(t *testing.T) {
	st := refusingStore{MemoryStore: store.NewMemoryStore(), path: "presence/bob"}
	s := NewSession(st, identity.NewDevProvider())
	ctx := context.Background()

	_, err := s.SignIn(ctx, "alice")
	require.NoError(t, err)

	var seen []*model.Identity
	s.Observe(func(ident *model.Identity) { seen = append(seen, ident) })

	_, err = s.SignIn(ctx, "bob")
	require.ErrorIs(t, err, ErrStoreWrite)
	assert.Equal(t, "alice", s.Current().ID)
	assert.Empty(t, seen)

	presence, err := st.Get(ctx, consts.PresencePath)
	require.NoError(t, err)
	raw, ok := presence.Lookup("alice")
	require.True(t, ok)
	assert.JSONEq(t, "true", string(raw))
}

func TestSession_SwitchingIdentitySignsOutPrevious(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSession(st, identity.NewDevProvider())
	ctx := context.Background()

	var seen []string
	s.Observe(func(ident *model.Identity) {
		if ident == nil {
			seen = append(seen, "-")
			return
		}
		seen = append(seen, ident.ID)
	})

	_, err := s.SignIn(ctx, "alice")
	require.NoError(t, err)
	_, err = s.SignIn(ctx, "bob")
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, seen)
	presence, err := st.Get(ctx, consts.PresencePath)
	require.NoError(t, err)
	raw, _ := presence.Lookup("alice")
	assert.JSONEq(t, "false", string(raw))
}
