package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/Lavr-18/AI-agent-Olivia/internal/ai"
	"github.com/Lavr-18/AI-agent-Olivia/internal/bot"
	"github.com/Lavr-18/AI-agent-Olivia/internal/catalog"
	"github.com/Lavr-18/AI-agent-Olivia/internal/config"
	"github.com/Lavr-18/AI-agent-Olivia/internal/dialog"
	"github.com/Lavr-18/AI-agent-Olivia/internal/gateway"
	"github.com/Lavr-18/AI-agent-Olivia/internal/logging"
	"github.com/Lavr-18/AI-agent-Olivia/internal/notify"
	"github.com/Lavr-18/AI-agent-Olivia/internal/server"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if _, err := logging.Setup(cfg.LogDir, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	log := logging.NewLogger("main")
	log.Info("Starting oliviad, logs in %s", logging.CurrentLogFile())

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Abort early when the gateway rejects the bot token.
	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Token)
	if err := gw.Probe(ctx); err != nil {
		if err == gateway.ErrUnauthorized {
			log.Fatal("Gateway authorization failed, check RETAIL_CRM_BOT_TOKEN")
		}
		log.Warn("Gateway probe failed: %v", err)
	}

	openaiClient := openai.NewClient(cfg.OpenAI.APIKey)

	notifier, err := notify.NewTelegramNotifier(notify.Options{
		BotToken:   cfg.Telegram.BotToken,
		ChatID:     cfg.Telegram.ChatID,
		TopicID:    cfg.Telegram.TopicID,
		CRM:        gw,
		ManagerB2B: cfg.ManagerB2B,
		ManagerB2C: cfg.ManagerB2C,
	})
	if err != nil {
		log.Fatal("Failed to initialize the Telegram notifier: %v", err)
	}

	moysklad := catalog.NewMoySkladClient(cfg.MoySklad.BaseURL, cfg.MoySklad.Token, nil)

	// The agent embeds catalog texts, so the two are wired in two steps.
	agent := ai.New(ai.Options{
		Client:     openaiClient,
		OpenAI:     cfg.OpenAI,
		StoreURL:   cfg.Catalog.StoreURL,
		Notifier:   notifier,
		Sender:     gw,
		Managers:   gw,
		ManagerB2B: cfg.ManagerB2B,
		ManagerB2C: cfg.ManagerB2C,
	})
	cat := catalog.New(catalog.Options{
		MoySklad:        moysklad,
		Embedder:        agent,
		SheetID:         cfg.Sheet.ID,
		DataDir:         cfg.Catalog.DataDir,
		RefreshInterval: time.Duration(cfg.Catalog.RefreshInterval) * time.Hour,
	})
	agent.SetCatalog(cat)

	if err := cat.Initialize(ctx); err != nil {
		log.Fatal("Catalog initialization failed: %v", err)
	}
	cat.StartRefresher(ctx)
	defer cat.Stop()

	store := dialog.NewStore()
	store.StartSweeper()
	defer store.Stop()

	orchestrator := bot.New(gw, agent, store, cfg.Gateway.Channels)
	defer orchestrator.Stop()

	consumer := gateway.NewConsumer(gw, orchestrator.HandleEvent)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("Websocket consumer stopped: %v", err)
		}
	}()

	// Periodic Bot API availability probe.
	go func() {
		interval := time.Duration(cfg.Gateway.ProbeInterval) * time.Second
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := gw.Probe(ctx); err != nil {
					log.Warn("Gateway probe failed: %v", err)
				} else {
					log.Debug("Gateway probe ok")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	srv := server.New(server.Options{
		ListenAddr:  cfg.Server.ListenAddr,
		AdminSecret: cfg.Server.AdminSecret,
		Catalog:     cat,
		Contexts:    store,
		Gateway:     gw,
	})
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received %s, shutting down", sig)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed: %v", err)
	}
	log.Info("Shutdown complete")
}
