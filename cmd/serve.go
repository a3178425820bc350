package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vendahub/zapbot/internal/bot"
	"github.com/vendahub/zapbot/internal/bus"
	"github.com/vendahub/zapbot/internal/channels/whatsapp"
	"github.com/vendahub/zapbot/internal/config"
	"github.com/vendahub/zapbot/internal/dispatch"
	"github.com/vendahub/zapbot/internal/followup"
	"github.com/vendahub/zapbot/internal/gateway"
	"github.com/vendahub/zapbot/internal/intent"
	"github.com/vendahub/zapbot/internal/providers"
	"github.com/vendahub/zapbot/internal/ratelimit"
	"github.com/vendahub/zapbot/internal/responder"
	"github.com/vendahub/zapbot/internal/sessions"
	"github.com/vendahub/zapbot/internal/store"
)

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Webhook.Secret == "" {
		slog.Warn("no webhook secret configured, all webhooks will be rejected",
			"env", "ZAPBOT_WEBHOOK_SECRET")
	}

	st := store.New()
	if err := st.Restore(cfg.Store.SnapshotPath); err != nil {
		slog.Error("failed to restore snapshot", "path", cfg.Store.SnapshotPath, "error", err)
		os.Exit(1)
	}

	msgBus := bus.New()

	waChannel, err := whatsapp.New(cfg.WhatsApp, msgBus)
	if err != nil {
		slog.Error("failed to create whatsapp channel", "error", err)
		os.Exit(1)
	}

	dispatcher := dispatch.New(waChannel, time.Duration(cfg.Dispatch.SendSpacingSec)*time.Second)

	var provider providers.Provider
	if cfg.AI.APIKey != "" {
		provider = providers.NewOpenAIProvider("openai", cfg.AI.APIKey, cfg.AI.APIBase, cfg.AI.Model)
		slog.Info("ai escalation enabled", "model", cfg.AI.Model)
	} else {
		slog.Warn("no AI API key configured, unmatched messages get the fallback reply")
	}

	classifier := intent.New()
	classifier.SetRules(intentRules(cfg.Intents))
	router := responder.New(classifier, provider, sessions.NewManager(), st, catalogProducts(cfg.Catalog))

	scheduler := followup.New(st, dispatcher, responder.ReminderMessage, time.Duration(cfg.FollowUp.DelayMin)*time.Minute)
	defer scheduler.Stop()
	scheduler.Rearm()

	engine := bot.NewEngine(bot.EngineConfig{
		Store:     st,
		Router:    router,
		Scheduler: scheduler,
		Sender:    dispatcher,
		Limiter:   ratelimit.New(),
		Bus:       msgBus,
	})

	server := gateway.NewServer(cfg, engine, st, waChannel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := waChannel.Start(ctx); err != nil {
		slog.Error("failed to start whatsapp channel", "error", err)
		os.Exit(1)
	}
	defer waChannel.Stop(context.Background())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	g.Go(func() error {
		engine.Run(ctx)
		return nil
	})
	g.Go(func() error {
		st.RunSnapshots(ctx, cfg.Store.SnapshotPath, cfg.Store.SnapshotCron,
			time.Duration(cfg.Store.SnapshotIntervalMin)*time.Minute)
		return nil
	})
	g.Go(func() error {
		err := config.Watch(ctx, cfgPath, func(next *config.Config) {
			classifier.SetRules(intentRules(next.Intents))
			router.SetCatalog(catalogProducts(next.Catalog))
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	slog.Info("zapbot started",
		"version", Version,
		"addr", cfg.Server.Host, "port", cfg.Server.Port,
		"bridge", cfg.WhatsApp.BridgeURL,
	)

	if err := g.Wait(); err != nil {
		slog.Error("zapbot exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("zapbot stopped")
}

// intentRules maps config rules onto classifier rules. An empty slice keeps
// the built-in table.
func intentRules(rules []config.IntentRule) []intent.Rule {
	out := make([]intent.Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, intent.Rule{
			Intent:   intent.Intent(r.Intent),
			Keywords: r.Keywords,
		})
	}
	return out
}

func catalogProducts(products []config.Product) []responder.Product {
	out := make([]responder.Product, 0, len(products))
	for _, p := range products {
		out = append(out, responder.Product{Name: p.Name, Price: p.Price, URL: p.URL})
	}
	return out
}
