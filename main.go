package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minjen/minjen-counter/backend/go-services/handlers"
	"github.com/minjen/minjen-counter/backend/go-services/internal/config"
	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan/handler"
	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan/repository"
	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan/service"
	"github.com/minjen/minjen-counter/backend/go-services/internal/notify"
	"github.com/minjen/minjen-counter/backend/go-services/internal/oidc"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/logger"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/metrics"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// app is everything main owns and must shut down.
type app struct {
	router     *gin.Engine
	store      *repository.Opened
	dispatcher *notify.Dispatcher
	redis      *redis.Client
}

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: store=%s firebase=%v redis=%v telegram=%v",
		cfg.Store.Backend, cfg.Auth.FirebaseProjectID != "", cfg.Redis.Host != "", cfg.Telegram.BotToken != "")

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		var err error
		if cfg.Server.TLSEnabled() {
			logger.Infof("listening on https://%s", srv.Addr)
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			logger.Infof("listening on http://%s", srv.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	a.close(shutdownCtx)
}

// newApp connects the store, the verifier and the notifier and builds the router.
func newApp(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*app, error) {
	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{store: store}

	// Redis for the shared rate limiter; the store opens its own client when it needs one.
	if cfg.Redis.Host != "" && cfg.RateLimit.Enabled && cfg.RateLimit.UseRedis {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis %s unavailable, falling back to in-memory rate limiting: %v", cfg.Redis.Addr(), err)
			_ = client.Close()
		} else {
			a.redis = client
		}
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	isAdmin := middleware.AdminFunc(cfg.Auth.IsAdminEmail)

	var sender notify.Sender = notify.NewLogSender()
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegramSender(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID, &http.Client{Timeout: cfg.Telegram.Timeout})
		if err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		sender = tg
	} else {
		logger.Infof("TELEGRAM_BOT_TOKEN not set; notifications go to the log")
	}
	a.dispatcher = notify.NewDispatcher(sender, notify.Options{
		QueueSize:     cfg.Telegram.QueueSize,
		Timeout:       cfg.Telegram.Timeout,
		RatePerSecond: cfg.Telegram.RatePerSecond,
	})

	svc := service.New(store, a.dispatcher)

	r := gin.New()
	r.Use(middleware.RequestID(), cors(cfg.Server.CORSAllowOrigin), gin.Logger(), gin.Recovery())
	if cfg.RateLimit.Enabled {
		if verifier != nil {
			// claims are needed before the limiter to key by user
			r.Use(middleware.OptionalAuth(verifier))
		}
		if a.redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(a.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	handlers.RegisterHealth(r, readinessProbes(cfg, store, verifier, a.redis))
	handlers.RegisterSwagger(r)
	handlers.RegisterMe(r, verifier, isAdmin, svc)
	handler.RegisterRoutes(r, svc, handler.Options{Verifier: verifier, IsAdmin: isAdmin})

	if reg != nil {
		metrics.RegisterCollectors(reg)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if verifier == nil {
		logger.Warnf("no token verifier configured; every route is open")
	}
	a.router = r
	return a, nil
}

// newVerifier returns nil when authentication is not configured.
func newVerifier(ctx context.Context, cfg *config.Config) (middleware.Verifier, error) {
	if cfg.Auth.FirebaseProjectID != "" {
		ver, err := oidc.NewFirebaseVerifier(ctx, cfg.Auth.FirebaseProjectID)
		if err == nil {
			return ver, nil
		}
		if !cfg.Auth.AllowInsecureToken {
			return nil, fmt.Errorf("firebase verifier: %w", err)
		}
		logger.Warnf("failed to initialize firebase verifier: %v", err)
	}
	if cfg.Auth.AllowInsecureToken {
		logger.Warn("enabling insecure token verifier (integration mode)")
		return oidc.NewInsecureVerifier(), nil
	}
	return nil, nil
}

func readinessProbes(cfg *config.Config, store repository.Repository, verifier middleware.Verifier, rdb *redis.Client) map[string]handlers.Probe {
	probes := map[string]handlers.Probe{
		"store": func(ctx context.Context) error {
			_, err := store.Load(ctx)
			return err
		},
		"oidc": func(ctx context.Context) error {
			if (cfg.Auth.FirebaseProjectID != "" || cfg.Auth.AllowInsecureToken) && verifier == nil {
				return errors.New("verifier not initialized")
			}
			return nil
		},
	}
	if rdb != nil {
		probes["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return probes
}

// cors answers preflight requests and sets the allow-* headers.
func cors(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, "+middleware.RequestIDHeader)
		h.Set("Access-Control-Expose-Headers", "Content-Length, "+middleware.RequestIDHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (a *app) close(ctx context.Context) {
	if err := a.dispatcher.Close(ctx); err != nil {
		logger.Warnf("notification queue not drained: %v", err)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.store.Close(ctx); err != nil {
		logger.Warnf("store close: %v", err)
	}
}
