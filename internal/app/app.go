package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/flashblaze/drinky-bot/internal/actor"
	"github.com/flashblaze/drinky-bot/internal/alarm"
	"github.com/flashblaze/drinky-bot/internal/config"
	"github.com/flashblaze/drinky-bot/internal/geotz"
	"github.com/flashblaze/drinky-bot/internal/metrics"
	"github.com/flashblaze/drinky-bot/internal/scheduler"
	"github.com/flashblaze/drinky-bot/internal/store"
	"github.com/flashblaze/drinky-bot/internal/telegram"
	"github.com/flashblaze/drinky-bot/internal/tracker"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	metrics *metrics.Metrics
	updates chan tgbotapi.Update
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	return &App{
		cfg:     cfg,
		log:     log,
		bot:     bot,
		metrics: metrics.New(),
		updates: make(chan tgbotapi.Update, 100),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting drinky-bot",
		zap.String("mode", a.cfg.RunMode),
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("bot", a.bot.Self.UserName),
	)

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	defer func() { _ = repo.Close() }()
	a.log.Info("sqlite ready", zap.String("path", a.cfg.DBPath))

	machine := alarm.New(repo, repo, repo, telegram.NewNotifier(a.bot),
		alarm.WithObserver(alarm.Observers{alarm.NewLogObserver(a.log), a.metrics}),
	)
	svc := tracker.New(repo, machine, actor.NewRegistry(), a.log,
		tracker.Defaults{
			GoalML:      a.cfg.DefaultGoalML,
			IntervalMin: a.cfg.DefaultIntervalMin,
			TZ:          a.cfg.DefaultTZ,
		},
		tracker.WithIntakeRecorder(a.metrics),
	)
	router := telegram.NewRouter(a.bot, a.log, svc, geotz.NewFinder(), a.cfg.DevCommands)
	if err := router.RegisterCommands(); err != nil {
		a.log.Warn("setMyCommands failed", zap.Error(err))
	}
	sched := scheduler.New(repo, svc, a.metrics, a.log.Named("scheduler"), a.cfg.PollInterval)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var webhookUpdates chan<- tgbotapi.Update
	if a.cfg.RunMode == config.RunModeWebhook {
		if err := a.setWebhook(); err != nil {
			return err
		}
		webhookUpdates = a.updates
	} else if err := a.startPolling(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         a.cfg.HTTPAddr,
		Handler:      newHTTPHandler(a.log, repo, a.metrics.Handler(), webhookUpdates),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(schedDone)
	}()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			// Create a short-lived shutdown context and cancel it immediately after use.
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := srv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			if a.cfg.RunMode != config.RunModeWebhook {
				a.bot.StopReceivingUpdates()
			}
			<-schedDone
			return nil

		case upd := <-a.updates:
			router.HandleUpdate(ctx, upd)
		}
	}
}

// startPolling removes any webhook and forwards long-polled updates into a.updates.
func (a *App) startPolling(ctx context.Context) error {
	if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return err
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	go forwardUpdates(ctx, a.bot.GetUpdatesChan(u), a.updates)
	return nil
}

// forwardUpdates copies updates from in to out until in is closed or ctx is done.
func forwardUpdates(ctx context.Context, in <-chan tgbotapi.Update, out chan<- tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- upd:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (a *App) setWebhook() error {
	wh, err := tgbotapi.NewWebhook(strings.TrimRight(a.cfg.WebhookURL, "/") + webhookPath)
	if err != nil {
		return err
	}
	if _, err := a.bot.Request(wh); err != nil {
		return err
	}
	a.log.Info("webhook registered", zap.String("url", wh.URL.String()))
	return nil
}
