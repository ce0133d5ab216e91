package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/ridelink/internal/auth"
	authhandler "github.com/example/ridelink/internal/auth/handler"
	"github.com/example/ridelink/internal/auth/session"
	ratelimitmw "github.com/example/ridelink/internal/http/middleware"
	"github.com/example/ridelink/internal/notify"
	outboxworker "github.com/example/ridelink/internal/outbox"
	"github.com/example/ridelink/internal/ride/domain"
	ridehandler "github.com/example/ridelink/internal/ride/handler"
	"github.com/example/ridelink/internal/ride/repository"
	rideservice "github.com/example/ridelink/internal/ride/service"
	"github.com/example/ridelink/internal/user"
	"github.com/example/ridelink/internal/ws"
	"github.com/example/ridelink/pkg/observability"
	outboxpkg "github.com/example/ridelink/pkg/outbox"
)

type appConfig struct {
	HTTPAddr      string
	PostgresDSN   string
	RedisAddr     string
	NATSURL       string
	JWTSecret     string
	JWTRefresh    string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	EventsSubject string
	RateRead      ratelimitmw.RateConfig
	RateWrite     ratelimitmw.RateConfig
	OutboxPoll    time.Duration
	OutboxBatch   int
	OutboxRetry   int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("ride-service")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "ride-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg := loadConfig()
	checks := map[string]observability.HealthCheck{}

	var pool *pgxpool.Pool
	if cfg.PostgresDSN != "" {
		pool, err = pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("postgres connect", zap.Error(err))
		}
		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("postgres ping", zap.Error(err))
		}
		defer pool.Close()
		checks["postgres"] = pool.Ping
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("rideservice")); err == nil {
			natsConn = conn
			defer conn.Drain() //nolint:errcheck
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	var users user.Repository
	var rides domain.Repository
	// With postgres, ride writes append their events to the transactional
	// outbox and the worker owns publishing; the direct publisher is only
	// for the in-memory setup.
	var events domain.EventPublisher = outboxpkg.Discard{}
	if pool != nil {
		users = user.NewPostgresRepository(pool)
		rides = repository.NewPostgresRepository(pool, cfg.EventsSubject)
	} else {
		logger.Warn("no postgres configured, using in-memory stores")
		users = user.NewMemoryRepository()
		rides = repository.NewMemoryRepository()
		events = outboxpkg.NewPublisher(natsConn, cfg.EventsSubject)
	}

	var sessions auth.SessionStore = session.NewMemoryStore()
	if redisClient != nil {
		sessions = session.NewRedisStore(redisClient, "")
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTRefresh, cfg.AccessTTL, cfg.RefreshTTL)
	authSvc := auth.NewService(users, tokens, sessions)

	registry := ws.NewRegistry()
	rooms := ws.NewRooms()
	hub := ws.NewHub(func(token string) (string, user.Role, error) {
		claims, err := tokens.Verify(token)
		if err != nil {
			return "", "", err
		}
		return claims.Username, user.Role(claims.Role), nil
	}, registry, rooms, logger.Named("hub"))

	notifier := notify.New(registry, rooms, logger.Named("notify"))
	rideSvc := rideservice.New(rides, users, notifier, events, domain.SystemClock{}, logger.Named("ride"))

	limiter := ratelimitmw.NewRateLimiter(redisClient, cfg.RateRead, cfg.RateWrite, bearerIdentifier(tokens))

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Logger, chimiddleware.Recoverer)
	if limiter != nil {
		r.Use(limiter.Middleware)
	}
	r.Mount("/v1/auth", authhandler.NewHTTP(authSvc).Router())
	r.Mount("/v1/rides", ridehandler.NewHTTP(rideSvc, tokens).Router())
	r.Handle("/ws", hub)
	r.Mount("/observability", observability.MetricsRouter(checks))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if pool != nil && natsConn != nil {
		worker := outboxworker.NewWorker(pool, natsConn, logger.Named("outbox"), outboxworker.WorkerConfig{
			PollInterval: cfg.OutboxPoll,
			BatchSize:    cfg.OutboxBatch,
			RetryMax:     cfg.OutboxRetry,
		})
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("outbox worker disabled", zap.Bool("db", pool != nil), zap.Bool("nats", natsConn != nil))
	}

	go func() {
		logger.Info("ride service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// bearerIdentifier keys rate-limit buckets on the authenticated username
// when the request carries a valid token, falling back to network identity.
func bearerIdentifier(tokens *auth.TokenService) ratelimitmw.IdentifierFunc {
	return func(r *http.Request) string {
		header := r.Header.Get("Authorization")
		if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
			if claims, err := tokens.Verify(header[7:]); err == nil {
				return claims.Username
			}
		}
		return ""
	}
}

func loadConfig() appConfig {
	return appConfig{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PostgresDSN:   firstNonEmpty(os.Getenv("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		NATSURL:       os.Getenv("NATS_URL"),
		JWTSecret:     getenv("JWT_SECRET", "dev-secret"),
		JWTRefresh:    getenv("JWT_REFRESH_SECRET", "dev-refresh-secret"),
		AccessTTL:     time.Duration(parseIntEnv("ACCESS_TTL_MIN", 240)) * time.Minute,
		RefreshTTL:    time.Duration(parseIntEnv("REFRESH_TTL_HOURS", 168)) * time.Hour,
		EventsSubject: getenv("EVENTS_SUBJECT", "ride.events"),
		RateRead: ratelimitmw.RateConfig{
			Rate:  parseFloatEnv("RATE_READ_RPS", 50),
			Burst: parseFloatEnv("RATE_READ_BURST", 100),
		},
		RateWrite: ratelimitmw.RateConfig{
			Rate:  parseFloatEnv("RATE_WRITE_RPS", 10),
			Burst: parseFloatEnv("RATE_WRITE_BURST", 20),
		},
		OutboxPoll:  time.Duration(parseIntEnv("OUTBOX_POLL_MS", 200)) * time.Millisecond,
		OutboxBatch: parseIntEnv("OUTBOX_BATCH", 100),
		OutboxRetry: parseIntEnv("OUTBOX_RETRY_MAX", 3),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
