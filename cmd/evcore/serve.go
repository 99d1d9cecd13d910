package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"evcore/internal/domain"
	"evcore/internal/notify"
	"evcore/internal/server"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background trigger monitor",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	parts, err := buildAgent(cfg)
	if err != nil {
		return err
	}
	defer parts.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier notify.Notifier
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID, logger)
		if err != nil {
			return err
		}
		notifier = tg
	}

	if cfg.Monitor.Enabled {
		callback := func(due []domain.Action) {
			results := parts.engine.Execute(ctx, due, nil)
			for _, r := range results {
				if r.Error != "" {
					logger.Warn("scheduled action failed", "action", r.Action, "err", r.Error)
				} else {
					logger.Info("scheduled action fired", "action", r.Action)
				}
			}
			if notifier != nil {
				if err := notifier.Notify(results); err != nil {
					logger.Warn("notify failed", "err", err)
				}
			}
		}
		if err := parts.engine.StartMonitoring(callback); err != nil {
			return err
		}
		defer func() {
			parts.engine.StopMonitoring()
			parts.engine.Wait()
		}()
	}

	srv := server.New(server.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		Dispatcher: parts.dispatcher,
		Registry:   parts.reg,
		Engine:     parts.engine,
		Store:      parts.store,
		Logger:     logger,
	})
	return srv.Start(ctx)
}
