package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/agro_shop/pkg/authclient"
	pkgdb "github.com/Skotchmaster/agro_shop/pkg/db"
	"github.com/Skotchmaster/agro_shop/pkg/logging"
	"github.com/Skotchmaster/agro_shop/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/agro_shop/pkg/middleware/logging"
	"github.com/Skotchmaster/agro_shop/pkg/mykafka"

	ordercfg "github.com/Skotchmaster/agro_shop/services/order/internal/config"
	"github.com/Skotchmaster/agro_shop/services/order/internal/events"
	"github.com/Skotchmaster/agro_shop/services/order/internal/httpserver"
	"github.com/Skotchmaster/agro_shop/services/order/internal/idempotency"
	"github.com/Skotchmaster/agro_shop/services/order/internal/repo"
	"github.com/Skotchmaster/agro_shop/services/order/internal/search"
	"github.com/Skotchmaster/agro_shop/services/order/internal/service"
)

func main() {
	if err := godotenv.Load("services/order/.env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := ordercfg.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.OpenWithPool(ctx, cfg.DatabaseURL, cfg.DBPool)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if cfg.DBAutoMigrate {
		if err := repo.Migrate(db); err != nil {
			log.Fatalf("db migrate: %v", err)
		}
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	svc := &service.OrderService{
		Tx: &repo.TxManager{
			DB:          db,
			Strategy:    cfg.LockStrategy,
			LockTimeout: cfg.LockTimeout,
		},
		Repo:   &repo.GormRepo{DB: db},
		Events: events.Noop{},
		Index:  search.Noop{},
	}

	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = mykafka.NewProducer(cfg.KafkaBrokers)
		svc.Events = &events.KafkaPublisher{Writer: producer, Topic: cfg.EventsTopic}
	} else {
		log.Printf("KAFKA_BROKERS not set, order events disabled")
	}

	if cfg.ElasticURL != "" {
		es, err := search.NewClient(cfg.ElasticURL, cfg.ElasticUser, cfg.ElasticPassword)
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		idx := &search.Index{ES: es, Name: cfg.OrderIndex}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = idx.EnsureIndex(ctx)
		cancel()
		if err != nil {
			log.Fatalf("elasticsearch index: %v", err)
		}
		svc.Index = idx
	} else {
		log.Printf("ES_URL not set, order search disabled")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = idempotency.NewClient(cfg.RedisAddr)
		svc.Idem = &idempotency.Store{
			RDB:        rdb,
			TTL:        idempotency.DefaultTTL,
			PendingTTL: cfg.LockTimeout + time.Minute,
		}
	}

	handler := &httpserver.OrderHTTP{Svc: svc}

	e := echo.New()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())
	e.Use(echomw.Secure())
	if cfg.CSRFEnabled {
		e.Use(csrf.Middleware(csrf.Config{SkipPaths: []string{"/health/live", "/health/ready"}}))
	}

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler: handler,
		JWTSecret:    cfg.JWTAccessSecret,
		AuthClient:   authclient.NewClient(cfg.AuthHTTPURL),
		Ready: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return fmt.Errorf("db: %w", err)
			}
			if rdb != nil {
				if err := rdb.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		log.Printf("order listening on %s (lock strategy %s)", srv.Addr, cfg.LockStrategy)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("kafka close: %v", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	pkgdb.Close(db)

	log.Println("order stopped")
}
