package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"comment-moderation/internal/classifier"
	"comment-moderation/internal/config"
	"comment-moderation/internal/handler"
	"comment-moderation/internal/notifier"
	"comment-moderation/internal/repository"
	"comment-moderation/internal/server"
	"comment-moderation/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "comment-moderation",
		Short:        "Moderation queue for live chat comments",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("config file (default %s, or $%s)", config.DefaultPath, config.PathEnv))

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(config.ResolvePath(configPath))
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print an argon2id hash for moderator.password_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, args)
			if err != nil {
				return err
			}
			hash, err := service.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	})

	return root
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting Comment Moderation Service",
		zap.String("classifier", cfg.Classifier.Provider),
		zap.String("storage", cfg.Storage.Driver))

	gateway, err := classifier.NewGatewayFromConfig(cfg.Classifier, logger)
	if err != nil {
		return err
	}
	defer gateway.Close()

	store, err := repository.NewCommentStore(cfg.Storage.Driver, cfg.Storage.DSN, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize comment store: %w", err)
	}
	defer store.Close()

	auth, err := service.NewAuthenticator(service.AuthConfig{
		Password:     cfg.Moderator.Password,
		PasswordHash: cfg.Moderator.PasswordHash,
		JWTSecret:    cfg.Moderator.JWTSecret,
		TokenTTL:     cfg.Moderator.TokenTTL,
	}, logger)
	if err != nil {
		return err
	}

	var pendingNotifier service.Notifier = service.NopNotifier{}
	var bot *notifier.Bot
	if cfg.Telegram.Enabled {
		bot, err = notifier.NewBot(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		if err != nil {
			return err
		}
		pendingNotifier = bot
	} else {
		logger.Info("Telegram notifications disabled")
	}

	compliance := service.NewComplianceRules(cfg.Compliance.Enabled, cfg.Compliance.Rules)
	moderator := service.NewModerator(gateway, store, compliance, pendingNotifier, cfg.Comments.MaxLength, logger)

	if bot != nil {
		go func() {
			if err := bot.Start(ctx, moderator); err != nil {
				logger.Error("Telegram bot stopped", zap.Error(err))
			}
		}()
	}

	srv := server.NewServer(cfg, handler.NewHandler(moderator, auth, logger), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	logger.Info("Comment Moderation Service is running", zap.String("port", cfg.Server.Port))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func readPassword(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	return password, nil
}
