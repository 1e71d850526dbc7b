package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vidroom/server/internal/controller"
	connInmemory "github.com/vidroom/server/internal/repository/connection/inmemory"
	roomInmemory "github.com/vidroom/server/internal/repository/room/inmemory"
	sessionInmemory "github.com/vidroom/server/internal/repository/session/inmemory"
	sessionRedis "github.com/vidroom/server/internal/repository/session/redis"
	"github.com/vidroom/server/internal/service/room"
	"github.com/vidroom/server/pkg/ctxlogger"
	"github.com/vidroom/server/pkg/redisclient"
)

type AppConfig struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	LogLevel      string `json:"log_level"`
	MembersLimit  int    `json:"members_limit"`
	StaticDir     string `json:"static_dir"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}),
	}

	logger := slog.New(&h)

	// sessions live in redis when an address is given, so bindings survive a
	// server restart; rooms are in-memory either way
	sessionRepo := newSessionRepo(cfg, logger)

	roomRepo := roomInmemory.NewRepo(cfg.MembersLimit, logger)
	connRepo := connInmemory.NewRepo()
	roomService := room.NewService(roomRepo, sessionRepo, connRepo, logger)
	controller := controller.NewController(roomService, cfg.StaticDir, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}

type sessionRepo interface {
	Bind(ctx context.Context, sessionId, connectionId string) error
	Resolve(ctx context.Context, sessionId string) (string, error)
	Unbind(ctx context.Context, sessionId string) error
}

func newSessionRepo(cfg *AppConfig, logger *slog.Logger) sessionRepo {
	if cfg.RedisAddr == "" {
		return sessionInmemory.NewRepo()
	}

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-memory sessions", "error", err)
		return sessionInmemory.NewRepo()
	}

	return sessionRedis.NewRepo(rc)
}
