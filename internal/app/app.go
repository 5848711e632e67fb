package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/service/friends"
	"github.com/vovakirdan/linechat-server/internal/store"
	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/linechat-server/internal/transport/http"
	"github.com/vovakirdan/linechat-server/internal/transport/tcp"
)

// AdminTokenTTL is the lifetime of tokens minted by the token command.
const AdminTokenTTL = 24 * time.Hour

// App wires together core and transport layers.
type App struct {
	chat            *tcp.Server
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// JWTConfig derives admin token settings from cfg.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.AdminJWTSecret),
		Issuer:   cfg.AdminJWTIssuer,
		Audience: cfg.AdminJWTAudience,
		TTL:      AdminTokenTTL,
	}
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	policy, err := core.ParseDuplicatePolicy(cfg.DuplicateLogin)
	if err != nil {
		return nil, err
	}

	st, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	authService := auth.NewService(st, auth.NewBcryptHasher(cfg.BcryptCost), logger)
	if users, err := authService.ListAll(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to count registered users")
	} else {
		logger.Info().Int("users", len(users)).Msg("registered users loaded")
	}

	hub := core.NewHub(authService, friends.New(st, logger), policy, logger,
		core.WithSenderCheck(cfg.EnforceSender))

	chat := tcp.NewServer(cfg.Addr, hub, tcp.Options{
		IdleTimeout:  cfg.IdleTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxLineBytes: cfg.MaxLineBytes,
	}, logger)

	var server *stdhttp.Server
	if cfg.HTTPAddr != "" {
		server = transporthttp.NewServer(hub, cfg, JWTConfig(cfg), logger)
	}

	return &App{
		chat:            chat,
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the chat listener and HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chatErr := make(chan error, 1)
	go func() { chatErr <- a.chat.ListenAndServe(ctx) }()

	serverErr := make(chan error, 1)
	if a.server != nil {
		// Websocket sessions outlive Shutdown; tie them to ctx instead.
		a.server.BaseContext = func(net.Listener) context.Context { return ctx }
		go func() {
			a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- err
				return
			}
			serverErr <- nil
		}()
	}

	var runErr error
	chatDone := false
	select {
	case runErr = <-chatErr:
		chatDone = true
	case runErr = <-serverErr:
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer shutdownCancel()

	if a.server != nil {
		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = err
		}
	}

	if !chatDone {
		a.log.Info().Msg("shutting down chat server")
		select {
		case err := <-chatErr:
			if runErr == nil {
				runErr = err
			}
		case <-shutdownCtx.Done():
			a.log.Warn().Msg("chat sessions did not close before shutdown timeout")
		}
	}

	a.cleanup()
	return runErr
}

// Hub exposes the chat hub.
func (a *App) Hub() *core.Hub {
	return a.hub
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
