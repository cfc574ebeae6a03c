package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"rmbot/internal/bot"
	"rmbot/internal/config"
	"rmbot/internal/domain"
	"rmbot/internal/epub"
	"rmbot/internal/fetch"
	"rmbot/internal/metrics"
	"rmbot/internal/remarkable"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:          "rmbot",
		Short:        "rmbot: send web articles to a reMarkable tablet from Telegram",
		Long:         "rmbot receives article links over Telegram, converts them to EPUB and uploads them with rmapi.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: $RMBOT_CONFIG or ~/.rmbot/config.yaml)")

	root.AddCommand(runCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(convertCmd())
	root.AddCommand(initCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(daemonCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config, $RMBOT_CONFIG,
// or the default location if a file exists there. Empty means none.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv(config.EnvConfig); p != "" {
		return p
	}
	if _, err := os.Stat(config.DefaultConfigPath()); err == nil {
		return config.DefaultConfigPath()
	}
	return ""
}

// loadConfig loads the config and replaces the global logger with one
// built from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	l, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	logger = l
	tgbotapi.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func newFetcher(cfg *config.Config) *fetch.Fetcher {
	return fetch.New(fetch.Config{
		Renderer:      cfg.Fetch.Renderer,
		UserAgent:     cfg.Fetch.UserAgent,
		Timeout:       time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		MaxBodyBytes:  cfg.Fetch.MaxBodyBytes,
		ChromeProfile: cfg.Fetch.ChromeProfile,
		Logger:        logger,
	})
}

func newDeliverer(cfg *config.Config) *remarkable.Client {
	return remarkable.New(remarkable.Config{
		RmapiPath: cfg.Remarkable.RmapiPath,
		Folder:    cfg.Remarkable.Folder,
		Logger:    logger,
	})
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the Telegram bot",
		Long:  "Checks startup preconditions, connects to Telegram and processes article links until interrupted.",
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := config.Preflight(cfg); err != nil {
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			for _, e := range joined.Unwrap() {
				logger.Error("startup check failed", "err", e)
			}
		} else {
			logger.Error("startup check failed", "err", err)
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	api.Debug = cfg.Telegram.Debug
	logger.Info("telegram bot connected",
		"username", api.Self.UserName,
		"id", api.Self.ID,
	)

	collector := metrics.New()
	if cfg.Metrics.Listen != "" {
		srv := collector.Server(cfg.Metrics.Listen, cfg.Metrics.Path)
		go func() {
			logger.Info("metrics listening", "addr", cfg.Metrics.Listen, "path", cfg.Metrics.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	handler := bot.NewHandler(api, newFetcher(cfg), epub.New(logger), newDeliverer(cfg), bot.HandlerConfig{
		Folder:    cfg.Remarkable.Folder,
		AllowFrom: cfg.Telegram.AllowFrom,
		Logger:    logger,
		Metrics:   collector,
	})
	b := bot.NewBot(api, handler, bot.BotConfig{
		PollTimeout: cfg.Telegram.PollTimeout,
		Logger:      logger,
	})

	logger.Info("starting Telegram → reMarkable bot",
		"version", version,
		"rmapi", cfg.Remarkable.RmapiPath,
		"folder", cfg.Remarkable.Folder,
		"renderer", cfg.Fetch.Renderer,
	)
	if err := b.Run(ctx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the rmapi connection to reMarkable cloud",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			s := newDeliverer(cfg).Status(cmd.Context())
			fmt.Printf("reMarkable: %s\n", s.State)
			if s.Diagnostic != "" {
				fmt.Printf("  %s\n", s.Diagnostic)
			}
			if s.State != domain.SyncOperational {
				return fmt.Errorf("rmapi %s", s.State)
			}
			return nil
		},
	}
}

func convertCmd() *cobra.Command {
	var (
		output string
		upload bool
	)
	cmd := &cobra.Command{
		Use:   "convert [url]",
		Short: "Convert an article to EPUB without Telegram",
		Long:  "Fetches the article at url and writes it as EPUB. With --upload the file is also sent to reMarkable.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			u, err := bot.ValidateURL(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			article, err := newFetcher(cfg).Fetch(ctx, u.String())
			if err != nil {
				return err
			}

			dest := output
			if dest == "" {
				dest = epub.FileName(article.Title)
			}
			if err := epub.New(logger).Package(article, dest); err != nil {
				return err
			}
			abs, _ := filepath.Abs(dest)
			fmt.Printf("📖 %s\n✍️ By %s\n%s\n", article.Title, article.Author, abs)

			if !upload {
				return nil
			}
			outcome := newDeliverer(cfg).Deliver(ctx, dest)
			if err := outcome.Err(); err != nil {
				return err
			}
			fmt.Printf("Uploaded to %s\n", cfg.Remarkable.Folder)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <title>.epub)")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload the EPUB with rmapi after converting")
	return cmd
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := configPath
			if cfgPath == "" {
				cfgPath = config.DefaultConfigPath()
			}
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}
			if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
				return err
			}
			cfg := config.Defaults()
			cfg.Telegram.Token = "${" + config.EnvToken + "}"
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
		Long:  "Show the effective configuration after defaults, config file and environment are applied.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. remarkable.folder)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			if p := resolveConfigPath(); p != "" {
				fmt.Println(p)
				return
			}
			fmt.Printf("%s (not present; using defaults and environment)\n", config.DefaultConfigPath())
		},
	})

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rmbot %s\n", version)
		},
	}
}
