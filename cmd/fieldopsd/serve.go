package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fieldops-io/fieldops/internal/api"
	"github.com/fieldops-io/fieldops/internal/connector"
	slackconn "github.com/fieldops-io/fieldops/internal/connector/slack"
	"github.com/fieldops-io/fieldops/internal/connector/telegram"
	"github.com/fieldops-io/fieldops/internal/conversation"
	"github.com/fieldops-io/fieldops/internal/imagehost"
	"github.com/fieldops-io/fieldops/internal/notify"
	"github.com/fieldops-io/fieldops/internal/orders"
	"github.com/fieldops-io/fieldops/internal/scheduler"
	"github.com/fieldops-io/fieldops/internal/ticket"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

func runServe(cmd *cobra.Command, _ []string) error {
	logger, logBuf := setupLogging()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	logger.Info("fieldopsd starting", "service_id", cfg.Service.ID, "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Ticket store and lifecycle engine
	if err := os.MkdirAll(cfg.Service.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	dbPath := filepath.Join(cfg.Service.DataDir, "tickets.db")
	store, err := ticket.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("open ticket store %s: %w", dbPath, err)
	}
	defer store.Close()
	tickets := ticket.NewEngine(store, logger)

	// 2. Reminder scheduler
	sched := scheduler.New(logger)

	// 3. One bot per role. Handlers reach the dispatchers built in step 5.
	dispatchers := make(map[protocol.Role]*conversation.Dispatcher, len(protocol.Roles))
	bots := make(map[protocol.Role]*telegram.Connector, len(protocol.Roles))
	messengers := make(map[protocol.Role]connector.Messenger, len(protocol.Roles))
	for _, role := range protocol.Roles {
		role := role
		bc := cfg.Bots.ForRole(role)
		bot, err := telegram.New(telegram.Config{
			Token:       bc.Token,
			Role:        string(role),
			AllowFrom:   bc.AllowFrom,
			APIEndpoint: bc.APIEndpoint,
		}, func(ctx context.Context, ev connector.Event) error {
			return dispatchers[role].Handle(ctx, ev)
		}, logger)
		if err != nil {
			return err
		}
		bots[role] = bot
		messengers[role] = bot
	}

	// 4. Notification router, optionally mirrored to Slack
	router := notify.New(store, tickets, messengers, sched, logger)
	if sc := cfg.Slack; sc != nil {
		mirror, err := slackconn.New(slackconn.Config{BotToken: sc.BotToken, Channel: sc.Channel}, logger)
		if err != nil {
			return err
		}
		if err := mirror.Verify(ctx); err != nil {
			logger.Warn("slack mirror unverified, alerts may not reach the channel", "error", err)
		}
		router.SetMirror(mirror)
	}

	// 5. Conversation engines behind per-chat dispatchers
	deps := func(role protocol.Role) conversation.Deps {
		return conversation.Deps{
			Tickets:       tickets,
			Subscriptions: store,
			Notifier:      router,
			Messenger:     messengers[role],
			Logger:        logger,
		}
	}

	var images imagehost.Host
	if ic := cfg.Images; ic != nil {
		bucket, err := imagehost.New(imagehost.Config{
			Endpoint:      ic.Endpoint,
			AccessKey:     ic.AccessKey,
			SecretKey:     ic.SecretKey,
			Bucket:        ic.Bucket,
			Region:        ic.Region,
			UseSSL:        ic.UseSSL,
			PublicBaseURL: ic.PublicBaseURL,
			Folder:        ic.Folder,
		}, logger)
		if err != nil {
			return err
		}
		images = bucket
	} else {
		logger.Warn("images not configured, photo attachments disabled")
	}

	daEngine := conversation.NewDAEngine(deps(protocol.RoleDA), conversation.DAConfig{
		Orders: orders.New(orders.Config{
			BaseURL:       cfg.Orders.BaseURL,
			ReferenceDate: cfg.Orders.ReferenceDate,
			Timeout:       cfg.Orders.Timeout(),
		}, logger),
		Images:         images,
		Files:          bots[protocol.RoleDA],
		QueryTodayOnly: cfg.DA.TodayOnly(),
		OrderTimeout:   cfg.Orders.Timeout(),
		Location:       loc,
	})
	dispatchers[protocol.RoleDA] = conversation.NewDispatcher(daEngine, logger)
	dispatchers[protocol.RoleSupervisor] = conversation.NewDispatcher(conversation.NewSupervisorEngine(deps(protocol.RoleSupervisor)), logger)
	dispatchers[protocol.RoleClient] = conversation.NewDispatcher(conversation.NewClientEngine(deps(protocol.RoleClient)), logger)

	// 6. Run everything until a signal or the first fatal error
	apiSrv := api.NewServer(tickets, store, logBuf, api.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(safeGo(logger, "scheduler", func() error { return sched.Start(gctx) }))
	g.Go(safeGo(logger, "api-server", func() error { return apiSrv.Start(gctx) }))
	for role, bot := range bots {
		bot := bot
		g.Go(safeGo(logger, "telegram/"+string(role), func() error { return bot.Start(gctx) }))
	}

	err = g.Wait()
	for _, d := range dispatchers {
		d.Wait()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("fieldopsd stopped")
	return nil
}

// safeGo wraps fn so a panic becomes an error that stops the group.
func safeGo(logger *slog.Logger, name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
				err = fmt.Errorf("%s: panic: %v", name, r)
			}
		}()
		return fn()
	}
}
