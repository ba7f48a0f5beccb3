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

	"sentinel-automod/internal/audit"
	"sentinel-automod/internal/automod"
	"sentinel-automod/internal/bot"
	"sentinel-automod/internal/config"
	"sentinel-automod/internal/events"
	"sentinel-automod/internal/export"
	"sentinel-automod/internal/httpx"
	"sentinel-automod/internal/platform"
	"sentinel-automod/internal/rules"
	"sentinel-automod/internal/settings"
	"sentinel-automod/internal/storage"
	"sentinel-automod/internal/vision"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "automod",
		Usage: "automatic moderation for Discord communities",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the YAML configuration file",
				Value:   "config.yaml",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "connect to Discord and moderate messages",
				Action: runBot,
			},
			{
				Name:   "check-config",
				Usage:  "validate the configuration and print the resolved storage settings",
				Action: checkConfig,
			},
		},
		Action: runBot,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func checkConfig(cctx *cli.Context) error {
	cfg, err := config.Parse(cctx.String("config"))
	if err != nil {
		return err
	}
	if _, err := rules.ParseAction(cfg.Actions.DefaultAction); err != nil {
		return fmt.Errorf("actions.default_action: %w", err)
	}
	if cfg.Export.Driver == "paste" && cfg.Export.PasteURL == "" {
		return errors.New("export.paste_url is required for the paste driver")
	}
	fmt.Fprintf(cctx.App.Writer, "storage=%s export=%s default_action=%s token_set=%t\n",
		cfg.Storage.Driver, cfg.Export.Driver, cfg.Actions.DefaultAction, cfg.DiscordToken != "")
	return nil
}

func runBot(cctx *cli.Context) error {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return err
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway, auditSink, closeStorage, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Error("storage init failed", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
		return err
	}
	defer closeStorage()

	cache, err := settings.New(gateway, cfg.Cache.Size, logger)
	if err != nil {
		return err
	}
	defaultAction, err := rules.ParseAction(cfg.Actions.DefaultAction)
	if err != nil {
		return fmt.Errorf("actions.default_action: %w", err)
	}
	deps := rules.Deps{Cache: cache, DefaultAction: defaultAction, Logger: logger}

	httpClient := httpx.NewClient(logger)
	var sink export.Sink = export.NewFileSink(cfg.Export.Dir)
	if cfg.Export.Driver == "paste" {
		sink = export.NewPasteSink(cfg.Export.PasteURL, httpClient)
	}
	collector := rules.NewCollector(rules.SpamRuleName, rules.CollectorConfig{
		Delay:        time.Duration(cfg.Spam.FlushDelaySeconds) * time.Second,
		MaxWait:      time.Duration(cfg.Spam.MaxWaitSeconds) * time.Second,
		MaxCollected: cfg.Spam.MaxCollected,
	}, sink, nil, logger)
	spamRule := rules.NewSpamRule(deps, rules.NewSpamChecker(rules.SpamLimits{
		UserCapacity:    cfg.RateLimit.UserCapacity,
		UserWindow:      time.Duration(cfg.RateLimit.UserWindowSeconds) * time.Second,
		ContentCapacity: cfg.RateLimit.ContentCapacity,
		ContentWindow:   time.Duration(cfg.RateLimit.ContentWindowSeconds) * time.Second,
		MaxKeys:         cfg.RateLimit.MaxBuckets,
	}), collector)
	defer spamRule.Close()

	registry := rules.NewRegistry()
	for _, rule := range []rules.Rule{
		rules.NewWallSpamRule(deps),
		rules.NewMentionSpamRule(deps),
		rules.NewDiscordInviteRule(deps),
		spamRule,
		rules.NewMaxWordsRule(deps),
		rules.NewMaxCharsRule(deps),
		rules.NewWordFilterRule(deps),
		rules.NewImageDetectionRule(deps, vision.NewAzureClient(httpClient)),
		rules.NewAllowedExtensionsRule(deps),
	} {
		if err := registry.Register(rule); err != nil {
			return err
		}
	}

	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		return err
	}
	global := rules.NewGlobal(cache)
	bus := events.NewBus(logger)
	auditLogger := audit.NewLogger(auditSink, logger)
	bus.Subscribe(events.Generic, auditLogger.HandleEvent)
	go auditLogger.RunRetention(ctx, 24*time.Hour, cfg.Audit.RetentionDays)

	client := platform.NewDiscord(session)
	router := automod.NewRouter(client, global, registry, automod.Colors{
		Offense: cfg.Announce.EmbedColors.Offense,
		Failure: cfg.Announce.EmbedColors.Failure,
	}, logger)
	collector.SetNotifier(router)
	executor := automod.NewExecutor(client, bus, router, automod.ExecutorConfig{
		ReasonPrefix:  cfg.Actions.ReasonPrefix,
		BanDeleteDays: cfg.Actions.BanDeleteDays,
	}, logger)
	dispatcher := automod.NewDispatcher(registry, executor, logger)

	botSvc := bot.New(session, dispatcher, bot.NewAdmin(registry, global, auditLogger), logger)
	if err := botSvc.Start(); err != nil {
		logger.Error("bot start failed", zap.Error(err))
		return err
	}
	logger.Info("bot started", zap.Strings("rules", registry.Names()), zap.String("storage", cfg.Storage.Driver))

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", promhttp.Handler())
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(shutdownCtx)
	}
	botSvc.Close()
	return nil
}

// openStorage returns the configured gateway, its audit sink (nil for
// backends without an audit table) and a close func.
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Gateway, storage.AuditSink, func(), error) {
	switch cfg.Driver {
	case "postgres":
		gateway, err := storage.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := gateway.Migrate(ctx); err != nil {
			gateway.Close()
			return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		return gateway, gateway, gateway.Close, nil
	case "redis":
		gateway, err := storage.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return gateway, nil, gateway.Close, nil
	case "memory":
		return storage.NewMemory(), nil, func() {}, nil
	default:
		store, err := storage.New(cfg.DatabasePath)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, nil, nil, fmt.Errorf("sqlite migrations: %w", err)
		}
		return store, store, store.Close, nil
	}
}
