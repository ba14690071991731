package wire

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"Parley/internal/api"
	"Parley/internal/api/config"
	"Parley/internal/job"
	"Parley/internal/pkg/cron"
	"Parley/internal/pkg/identity"
	"Parley/internal/pkg/logger"
	"Parley/internal/pkg/mongo"
	"Parley/internal/pkg/redis"
	"Parley/internal/pkg/security"
	"Parley/internal/pkg/store"
	"Parley/internal/service"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router  *gin.Engine
	Hub     *service.Hub
	Store   store.Store
	CronMgr *cron.Manager
}

func BuildApplication(ctx context.Context, cfg *config.Config) (*ApplicationContainer, error) {
	backend, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	st := store.WithRetry(backend, cfg.Store.WriteRetry.Attempts, cfg.Store.WriteRetry.Backoff)

	provider, err := NewProvider(cfg.Identity)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	security.Init(cfg.Session.Secret, cfg.Session.TTL)

	hub := service.NewHub(st, provider)
	router := api.SetupRouter(api.NewHandlersGroup(hub), cfg)
	cronMgr := cron.NewCronManager(cfg.Session.ReapSpec, job.NewSessionReapJob(hub, cfg.Session.TTL))

	return &ApplicationContainer{
		Router:  router,
		Hub:     hub,
		Store:   st,
		CronMgr: cronMgr,
	}, nil
}

// NewStore 按 store.driver 选择实时存储后端
func NewStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "memory":
		log.Warn("Using in-memory store, data is lost on restart and not shared between instances")
		return store.NewMemoryStore(), nil
	case "redis":
		rdb, err := redis.InitRedis(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		st, err := store.NewRedisStore(ctx, rdb, cfg.Redis.KeyPrefix)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "mongo":
		db, err := mongo.InitMongo(cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("mongo connection: %w", err)
		}
		st, err := store.NewMongoStore(ctx, db, cfg.Mongo.Collection)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// NewProvider 按 identity.driver 选择身份提供方
func NewProvider(cfg config.IdentityConfig) (identity.Provider, error) {
	switch cfg.Driver {
	case "", "dev":
		log.Warn("Using dev identity provider, credentials are not verified")
		return identity.NewDevProvider(), nil
	case "google":
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, fmt.Errorf("google identity provider requires client_id and client_secret")
		}
		return identity.NewGoogleProvider(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL).
			WithHTTPClient(logger.NewHTTPClient(10 * time.Second)), nil
	default:
		return nil, fmt.Errorf("unknown identity driver %q", cfg.Driver)
	}
}
