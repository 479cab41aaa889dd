package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mfGuruBot/internal/advisor"
	"mfGuruBot/internal/config"
	"mfGuruBot/internal/finance"
	"mfGuruBot/internal/logger"
	"mfGuruBot/internal/openai"
	"mfGuruBot/internal/scheduler"
	"mfGuruBot/internal/server"
	"mfGuruBot/internal/storage"
	"mfGuruBot/internal/telegram"
)

func main() {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg := logger.New(cfg.Log)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ensure parent directory for the DB exists
	_ = os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755)
	db, err := storage.OpenSQLite("file:" + cfg.DB.Path + "?_fk=1&_busy_timeout=5000")
	if err != nil {
		lg.Fatal("db: open failed", zap.String("path", cfg.DB.Path), zap.Error(err))
	}
	defer db.Close()
	if err := storage.InitSchema(db); err != nil {
		lg.Fatal("db: schema failed", zap.Error(err))
	}
	store := storage.NewStore(db)
	lg.Info("db: opened sqlite", zap.String("path", cfg.DB.Path))

	client := finance.NewClient(finance.ClientOptions{
		BaseURL:     cfg.MFAPI.BaseURL,
		Timeout:     cfg.MFAPI.Timeout,
		RatePerSec:  cfg.MFAPI.RatePerSec,
		MaxTries:    cfg.MFAPI.MaxTries,
		InitialWait: cfg.MFAPI.InitialWait,
	}, lg.WithComponent("mfapi"))

	fallback, err := finance.LoadFallbackCatalogue(cfg.Advisor.FallbackPath)
	if err != nil {
		lg.Warn("fallback catalogue unavailable", zap.String("path", cfg.Advisor.FallbackPath), zap.Error(err))
	}

	var explainer advisor.Explainer
	if cfg.OpenAI.APIKey != "" {
		explainer = openai.NewExplainer(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens,
			option.WithRequestTimeout(cfg.OpenAI.Timeout))
	} else {
		lg.Warn("openai.api_key not set, explanations use the fixed fallback text")
	}

	adv := advisor.New(
		advisor.NewCachedSource(store, client, cfg.Advisor.NAVCacheTTL, lg.Logger),
		explainer,
		advisor.Options{
			Codes:    cfg.Advisor.Codes,
			TopN:     cfg.Advisor.TopN,
			Workers:  cfg.Advisor.Workers,
			Fallback: fallback,
		},
		lg.Logger,
	)

	api, err := telegram.NewAPI(cfg.Telegram.Token, cfg.Telegram.Debug)
	if err != nil {
		lg.Fatal("telegram: auth failed", zap.Error(err))
	}
	h := telegram.NewHandlers(api, store, adv, lg.Logger).WithAdviceTimeout(cfg.Advisor.Timeout)
	bot, err := telegram.NewBot(api, h, cfg.Telegram.WebhookURL, lg.Logger)
	if err != nil {
		lg.Fatal("telegram: setup failed", zap.Error(err))
	}

	sched := scheduler.NewScheduler(ctx, client, store, scheduler.Specs{
		RefreshSchemes: cfg.Schedule.RefreshSchemes,
		PurgeNAV:       cfg.Schedule.PurgeNAV,
		PruneSessions:  cfg.Schedule.PruneSessions,
		NAVCacheTTL:    cfg.Advisor.NAVCacheTTL,
		SessionIdle:    cfg.Schedule.SessionIdle,
	}, lg.Logger)
	sched.AfterPrune(func(before time.Time) {
		if n := h.ForgetIdleChats(before); n > 0 {
			lg.Info("idle chat locks released", zap.Int("chats", n))
		}
	})
	if err := sched.RegisterAll(); err != nil {
		lg.Fatal("scheduler: register failed", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()
	go sched.RefreshSchemesNow()

	mode := "polling"
	var webhook http.HandlerFunc
	if cfg.UsesWebhook() {
		mode = "webhook"
		webhook = bot.WebhookHandler
	}
	mux := server.NewHTTPMux(webhook, func() map[string]any {
		n, _ := store.CountSchemes()
		return map[string]any{"mode": mode, "schemes": n}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx, ":"+cfg.HTTP.Port, mux, lg.Logger)
	})
	if !cfg.UsesWebhook() {
		g.Go(func() error {
			bot.Poll(gctx)
			return nil
		})
	}
	lg.Info("bot running", zap.String("mode", mode))
	if err := g.Wait(); err != nil {
		lg.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("shutdown complete")
}
