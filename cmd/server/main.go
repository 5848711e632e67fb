package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/linechat-server/internal/app"
	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/log"
	"github.com/vovakirdan/linechat-server/internal/store"
	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
)

type rootFlags struct {
	configPath string
	logLevel   string
	addr       string
	httpAddr   string
	dbPath     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "linechat-server",
		Short:         "Line-protocol chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "sqlite database path")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat and HTTP servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	serve.Flags().StringVar(&flags.addr, "addr", "", "chat listen address")
	serve.Flags().StringVar(&flags.httpAddr, "http-addr", "", "HTTP listen address")

	root.AddCommand(serve, newTokenCmd(flags), newUsersCmd(flags))
	return root
}

// loadConfig resolves configuration and applies command line overrides.
func loadConfig(flags *rootFlags) (config.Config, *zerolog.Logger, error) {
	bootLog := log.New(flags.logLevel)

	cfg, path, err := config.Load(bootLog, flags.configPath)
	if err != nil {
		return cfg, bootLog, err
	}
	cfg.UpdateFrom(config.Config{
		Addr:         flags.addr,
		HTTPAddr:     flags.httpAddr,
		DatabasePath: flags.dbPath,
		LogLevel:     flags.logLevel,
	})

	logger := log.New(cfg.LogLevel)
	logger.Debug().Str("config", path).Msg("config loaded")
	return cfg, logger, nil
}

func runServe(ctx context.Context, flags *rootFlags) error {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Str("http_addr", cfg.HTTPAddr).Msg("starting linechat server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newTokenCmd(flags *rootFlags) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin token for the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			jwtConfig := app.JWTConfig(&cfg)
			jwtConfig.TTL = ttl

			token, err := auth.GenerateToken(jwtConfig, subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", app.AdminTokenTTL, "token lifetime")
	return cmd
}

func newUsersCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}

			st, err := sqlite.New(cmd.Context(), cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("init store: %w", err)
			}
			defer st.Close()

			users, err := auth.NewService(st, auth.NewBcryptHasher(cfg.BcryptCost), logger).ListAll(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d registered users\n", len(users))
			for _, u := range users {
				fmt.Fprintf(out, "%d;%s;%s;%s;%s\n", u.ID, u.Login, u.Username, u.Birthday.Format(store.DateLayout), u.City)
			}
			return nil
		},
	}
}
