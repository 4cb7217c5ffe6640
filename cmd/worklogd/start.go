package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/adapters/discord"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/adapters/jira"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/comms"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/config"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/gateway"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/logging"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/metrics"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/store"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/tracker"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/worklog"
)

// runStart wires every component and blocks until a signal arrives or a
// long-running part fails.
func runStart(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logging.Init(cfg.Logging); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	log := logging.WithComponent("main")

	st, err := store.Open(cfg.Store.TasksPath, cfg.Store.UsersPath)
	if err != nil {
		return fmt.Errorf("open mapping store: %w", err)
	}

	collector := metrics.NewCollector()

	jiraClient := jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken, cfg.Jira.Platform)
	strategy := worklog.NewStrategy(jiraClient, cfg.Tracking.SubmitTimeout.Std(), collector)

	registry := tracker.NewRegistry()
	resolver := tracker.NewResolver(st, cfg.Tracking.MinSession.Std(), collector)

	discordClient := discord.NewClient(cfg.Discord.BotToken)
	notifier := discord.NewDMNotifier(discordClient)
	pipeline := tracker.NewPipeline(resolver, strategy, notifier, collector)

	commands := comms.NewCommandHandler(cfg.Discord.CommandPrefix, cfg.Discord.AdminUsers,
		discordClient, st, jiraClient, strategy)
	gatewayClient := discord.NewGatewayClient(cfg.Discord.BotToken, discord.DefaultIntents)
	voice := discord.NewVoiceHandler(gatewayClient, registry, pipeline, st, notifier,
		commands, discordClient, collector)

	webhook := gateway.NewWebhookHandler(st, pipeline, cfg.Webhook.Secret, collector)
	limiter := gateway.NewRateLimiter(cfg.Webhook.RatePerMinute, cfg.Webhook.Burst)
	server := gateway.NewServer(cfg.Server, webhook, collector.Handler(), limiter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Periodic sweep flags sessions that likely missed their leave event.
	sweeper := cron.New()
	_, err = sweeper.AddFunc(fmt.Sprintf("@every %s", cfg.Tracking.SweepEvery.Std()), func() {
		stale := registry.Stale(time.Now(), cfg.Tracking.StaleAfter.Std())
		for _, sess := range stale {
			collector.ObserveSession(metrics.SessionStale)
			log.Warn("stale session detected",
				slog.String("user_id", sess.UserID),
				slog.String("channel_id", sess.ChannelID),
				slog.Time("started_at", sess.StartedAt))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule stale sweep: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.Store.Watch {
		watcher, err := store.NewWatcher(st)
		if err != nil {
			return fmt.Errorf("watch mapping files: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("mapping file watcher stopped", slog.Any("error", err))
			}
		}()
	}

	errCh := make(chan error, 2)
	go func() { errCh <- server.Start(ctx) }()
	go func() { errCh <- voice.Run(ctx) }()

	log.Info("worklogd started",
		slog.String("version", version),
		slog.Int("port", cfg.Server.Port))

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}
}
