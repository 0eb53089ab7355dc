package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/meeting-room-reservation/internal/config"
	"github.com/iliyamo/meeting-room-reservation/internal/database"
	"github.com/iliyamo/meeting-room-reservation/internal/handler"
	"github.com/iliyamo/meeting-room-reservation/internal/logger"
	"github.com/iliyamo/meeting-room-reservation/internal/middleware"
	"github.com/iliyamo/meeting-room-reservation/internal/queue"
	"github.com/iliyamo/meeting-room-reservation/internal/router"
	"github.com/iliyamo/meeting-room-reservation/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.IsProd())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.OpenStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer store.Close()

	// Redis is optional: without it rate limiting and caching are off.
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	redisCfg, err := config.LoadRedisConfig()
	if err != nil {
		return err
	}
	rdb := config.NewRedisClient(redisCfg)
	buckets := middleware.NewRedisBucket(rdb)
	pinBuckets := buckets
	if rdb == nil {
		lg.Warn("redis unreachable, rate limiting and response cache disabled", zap.String("addr", redisCfg.Address()))
		// cancellation attempts stay limited, per process
		pinBuckets = middleware.NewMemoryBucket()
	} else {
		defer func() { _ = rdb.Close() }()
	}

	var events service.EventPublisher
	if cfg.EventsEnabled {
		events = service.NewRabbitPublisher(cfg.RabbitURL, lg)
	}
	svc := service.NewBookingService(store.Reservations, service.Options{
		Events:         events,
		Logger:         lg,
		BcryptCost:     cfg.BcryptCost,
		DefaultName:    cfg.DefaultReserverName,
		DefaultPurpose: cfg.DefaultPurpose,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(lg))
	e.Use(echomw.Recover())

	h := handler.NewReservationHandler(svc, cfg.ConfirmationSecret, cfg.ConfirmationTTL,
		middleware.NewCacheInvalidator(cacheCfg, rdb, lg), lg)
	router.RegisterRoutes(e, store.Ping)
	router.RegisterReservations(e, h,
		middleware.NewRedisCache(cacheCfg, rdb, lg),
		middleware.NewTokenBucket(rlCfg, buckets, lg),
		middleware.NewPinGuard(rlCfg, pinBuckets, lg))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.ConsumerEnable {
		c := &queue.Consumer{URL: cfg.RabbitURL, LogDir: cfg.EventLogDir, Log: lg}
		g.Go(func() error {
			if err := c.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
