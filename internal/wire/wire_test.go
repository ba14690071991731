package wire

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Parley/internal/api/config"
	"Parley/internal/pkg/identity"
	"Parley/internal/pkg/store"
)

func TestNewStore_Drivers(t *testing.T) {
	ctx := context.Background()

	st, err := NewStore(ctx, &config.Config{Store: config.StoreConfig{Driver: "memory"}})
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, st)

	mr := miniredis.RunT(t)
	st, err = NewStore(ctx, &config.Config{
		Store: config.StoreConfig{Driver: "redis"},
		Redis: config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "test"},
	})
	require.NoError(t, err)
	assert.IsType(t, &store.RedisStore{}, st)
	require.NoError(t, st.Close())

	_, err = NewStore(ctx, &config.Config{Store: config.StoreConfig{Driver: "etcd"}})
	require.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.IdentityConfig{Driver: "dev"})
	require.NoError(t, err)
	assert.IsType(t, &identity.DevProvider{}, p)

	p, err = NewProvider(config.IdentityConfig{Driver: "google", ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())

	_, err = NewProvider(config.IdentityConfig{Driver: "google"})
	require.Error(t, err)
}

func useRepoRoot(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(filepath.Join("..", "..")))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestShippedConfigProvider(t *testing.T) {
	useRepoRoot(t)

	require.NoError(t, config.LoadConfig())
	p, err := NewProvider(config.Cfg.Identity)
	require.NoError(t, err)
	assert.Equal(t, "dev", p.Name())

	t.Setenv("PARLEY_IDENTITY_DRIVER", "google")
	t.Setenv("PARLEY_IDENTITY_CLIENT_ID", "id")
	t.Setenv("PARLEY_IDENTITY_CLIENT_SECRET", "secret")
	require.NoError(t, config.LoadConfig())
	p, err = NewProvider(config.Cfg.Identity)
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
}

func TestBuildApplication(t *testing.T) {
	app, err := BuildApplication(context.Background(), &config.Config{
		Store:   config.StoreConfig{Driver: "memory", WriteRetry: config.RetryConfig{Attempts: 2}},
		Session: config.SessionConfig{ReapSpec: "0 */5 * * * *"},
	})
	require.NoError(t, err)
	require.NoError(t, app.CronMgr.RegisterJobs())
	assert.NotNil(t, app.Router)
	assert.Zero(t, app.Hub.Len())
}
