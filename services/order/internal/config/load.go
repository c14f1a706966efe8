package config

import (
	"time"

	"github.com/Skotchmaster/agro_shop/pkg/config"
	"github.com/Skotchmaster/agro_shop/pkg/db"
	"github.com/Skotchmaster/agro_shop/services/order/internal/repo"
)

type ServiceConfig struct {
	config.Config

	DBPool db.Pool

	LockStrategy repo.LockStrategy
	LockTimeout  time.Duration

	EventsTopic string
	OrderIndex  string

	CSRFEnabled bool
}

func Load() ServiceConfig {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "order"
	}

	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustNonEmpty(cfg.AuthHTTPURL, "AUTH_URL")

	strategy := config.EnvDefault("ORDER_LOCK_STRATEGY", string(repo.LockPessimistic))
	config.MustOneOf(strategy, "ORDER_LOCK_STRATEGY", string(repo.LockPessimistic), string(repo.LockOptimistic))

	pool := db.DefaultPool()
	pool.MaxOpen = config.EnvIntDefault("DB_MAX_OPEN_CONNS", pool.MaxOpen)
	if pool.MaxIdle > pool.MaxOpen {
		pool.MaxIdle = pool.MaxOpen
	}

	return ServiceConfig{
		Config:       cfg,
		DBPool:       pool,
		LockStrategy: repo.LockStrategy(strategy),
		LockTimeout:  config.EnvDurationDefault("ORDER_LOCK_TIMEOUT", 5*time.Second),
		EventsTopic:  config.EnvDefault("ORDER_EVENTS_TOPIC", "order_events"),
		OrderIndex:   config.EnvDefault("ORDER_INDEX", "orders"),
		CSRFEnabled:  config.EnvBoolDefault("CSRF_ENABLED", false),
	}
}
