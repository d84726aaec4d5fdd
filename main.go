package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"taskhub/breaker"
	"taskhub/config"
	"taskhub/database"
	"taskhub/handlers"
	"taskhub/hierarchy"
	"taskhub/logging"
	"taskhub/memstore"
	"taskhub/middleware"
	"taskhub/mongostore"
	"taskhub/scheduler"
	"taskhub/tasks"
)

type backend interface {
	breaker.Backend
	handlers.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Logger.Fatalf("Invalid configuration: %v", err)
	}
	logging.Init(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		logging.Logger.Fatalf("Failed to open %s store: %v", cfg.Store.Driver, err)
	}
	defer closeStore()

	guarded := breaker.New(store, breaker.Settings{
		Name:        cfg.Store.Driver + "-store",
		MaxFailures: cfg.Breaker.MaxFailures,
		Timeout:     cfg.Breaker.Timeout,
	})
	projects := hierarchy.NewService(guarded)
	taskService := tasks.NewService(guarded)

	sched := scheduler.NewScheduler(projects)
	if err := sched.Start(cfg.Repair.Schedule); err != nil {
		logging.Logger.Fatalf("Failed to start scheduler: %v", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.Server.CORSOrigins))
	r.Use(middleware.RequestID())
	r.Use(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))

	handlers.RegisterRoutes(r, handlers.Deps{
		Projects:  projects,
		Tasks:     taskService,
		Store:     store,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Logger.Infof("Server starting on :%s (store: %s)", cfg.Server.Port, cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logging.Logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Errorf("Server shutdown: %v", err)
	}
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		logging.Logger.Warn("Repair job still running at shutdown")
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig) (backend, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.Driver {
	case config.DriverMongo:
		s, err := mongostore.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close(context.Background()) }, nil
	case config.DriverMemory:
		logging.Logger.Warn("Using in-memory store, data will not survive a restart")
		return memstore.New(), func() {}, nil
	default:
		db, err := database.Connect(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}
