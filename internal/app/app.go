// Package app wires configuration, storage, and the domain components
// together behind the methods the CLI commands call.
package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"otcdesk/internal/config"
	"otcdesk/internal/dispatch"
	"otcdesk/internal/fetcher"
	"otcdesk/internal/metrics"
	"otcdesk/internal/monitor"
	"otcdesk/internal/notify"
	"otcdesk/internal/pricing"
	"otcdesk/internal/scheduler"
	"otcdesk/internal/settlement"
	"otcdesk/internal/storage"
)

// ErrNoDatabase is returned by commands that cannot run without persistence.
var ErrNoDatabase = errors.New("database.dsn not configured")

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	registry *prometheus.Registry
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	registry := prometheus.NewRegistry()
	return &App{
		Config:   cfg,
		Logger:   logger.With().Str("component", "app").Logger(),
		Metrics:  metrics.New(registry),
		registry: registry,
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, ErrNoDatabase
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newFetcher() fetcher.BookFetcher {
	return fetcher.NewOKXBook(fetcher.OKXOptions{
		BaseURL:        a.Config.Quote.BaseURL,
		QuoteCurrency:  a.Config.Quote.QuoteCurrency,
		BaseCurrency:   a.Config.Quote.BaseCurrency,
		PaymentChannel: a.Config.Quote.PaymentChannel,
		Timeout:        a.Config.Quote.RequestTimeout,
		UserAgent:      a.Config.Quote.UserAgent,
	}, a.Logger)
}

// quoteSource labels persisted observations with their origin.
const quoteSource = "okx"

func (a *App) newResolver(store *storage.Store) *pricing.Resolver {
	defaultMarkup := decimal.NewFromFloat(a.Config.Pricing.GlobalMarkup)
	return pricing.NewResolver(a.newFetcher(), store, store, quoteSource, defaultMarkup, a.Logger)
}

func (a *App) newCalculator(store *storage.Store) (*settlement.Calculator, error) {
	return settlement.NewCalculator(a.newResolver(store), store, store, a.Config.App.NodeID, a.Metrics, a.Logger)
}

func (a *App) newEngine(store *storage.Store) *dispatch.Engine {
	return dispatch.NewEngine(store, dispatch.Options{
		SmartCutoff: a.Config.Dispatch.SmartCutoff,
		StickyTTL:   a.Config.Dispatch.StickyTTL,
		Metrics:     a.Metrics,
	}, a.Logger)
}

func (a *App) newNotifier() notify.Notifier {
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		return notify.NewTelegramNotifier(cfg.BotToken, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return logNotifier{logger: a.Logger}
}

// logNotifier stands in when telegram delivery is disabled so alert hits are
// still visible in the logs.
type logNotifier struct {
	logger zerolog.Logger
}

func (n logNotifier) Notify(ctx context.Context, chatID string, note notify.Notification) error {
	n.logger.Info().
		Str("chat_id", chatID).
		Int64("rule_id", note.RuleID).
		Str("operator", string(note.Operator)).
		Str("threshold", note.Threshold.String()).
		Str("final_price", note.FinalPrice.String()).
		Msg("alert triggered (telegram disabled)")
	return nil
}

var _ notify.Notifier = logNotifier{}

// Run executes the long-running alert monitor.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	unlock, acquired, err := store.TryAdvisoryLock(ctx, a.Config.Monitor.AdvisoryLockKey)
	if err != nil {
		return err
	}
	if !acquired {
		a.Logger.Warn().Msg("another monitor already holds the advisory lock; exiting")
		return nil
	}
	defer unlock()

	mon := monitor.New(
		a.newResolver(store),
		store,
		a.newNotifier(),
		a.Metrics,
		monitor.Options{Debounce: a.Config.Monitor.Debounce},
		a.Logger,
	)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Monitor.Interval,
		StartupDelay: a.Config.Monitor.StartupDelay,
	}, a.Logger)

	if !a.Config.Telegram.Enabled {
		a.Logger.Warn().Msg("telegram disabled; alert hits will only be logged")
	}

	a.Logger.Info().
		Dur("interval", a.Config.Monitor.Interval).
		Dur("debounce", a.Config.Monitor.Debounce).
		Msg("starting alert monitor")

	err = sched.Run(ctx, mon.Tick)
	a.logMetricTotals(a.registry)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("alert monitor stopped")
	return nil
}

// logMetricTotals dumps counter totals at shutdown; the binary carries no
// scrape endpoint.
func (a *App) logMetricTotals(registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		a.Logger.Error().Err(err).Msg("failed to gather metrics")
		return
	}

	event := a.Logger.Info()
	for _, family := range families {
		var total float64
		for _, metric := range family.GetMetric() {
			if counter := metric.GetCounter(); counter != nil {
				total += counter.GetValue()
			}
		}
		event = event.Float64(family.GetName(), total)
	}
	event.Msg("metric totals at shutdown")
}
