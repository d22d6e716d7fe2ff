// Package monitor evaluates active alert rules against the freshly resolved
// global price on every scheduler tick.
package monitor

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"otcdesk/internal/metrics"
	"otcdesk/internal/notify"
	"otcdesk/internal/pricing"
	"otcdesk/internal/storage"
)

// PriceResolver is the slice of pricing.Resolver the monitor needs.
type PriceResolver interface {
	ResolvePrice(ctx context.Context, groupID *int64, persistHistory bool) (pricing.Price, error)
}

// Options tune monitor behaviour.
type Options struct {
	// Debounce is the minimum gap between two notifications for one rule.
	Debounce time.Duration
}

// Monitor drives threshold evaluation. Tick is non-reentrant: a tick that
// arrives while the previous one still runs is skipped, never queued.
type Monitor struct {
	resolver PriceResolver
	rules    storage.AlertRuleStore
	notifier notify.Notifier
	metrics  *metrics.Metrics
	opts     Options
	logger   zerolog.Logger

	ticking sync.Mutex
}

// New constructs an alert monitor. metrics may be nil.
func New(resolver PriceResolver, rules storage.AlertRuleStore, notifier notify.Notifier, m *metrics.Metrics, opts Options, logger zerolog.Logger) *Monitor {
	if opts.Debounce <= 0 {
		opts.Debounce = 5 * time.Minute
	}
	return &Monitor{
		resolver: resolver,
		rules:    rules,
		notifier: notifier,
		metrics:  m,
		opts:     opts,
		logger:   logger.With().Str("component", "monitor").Logger(),
	}
}

// Tick resolves the global price once and evaluates every active rule
// against it. Quote-source failures are absorbed here: the tick is skipped
// and logged, and the error never reaches the scheduler as fatal.
func (m *Monitor) Tick(ctx context.Context, at time.Time) error {
	if !m.ticking.TryLock() {
		m.logger.Warn().Time("tick", at).Msg("previous tick still running; skipping")
		m.metrics.IncTick("skipped")
		return nil
	}
	defer m.ticking.Unlock()

	started := time.Now()
	price, err := m.resolver.ResolvePrice(ctx, nil, true)
	m.observeFetch(err, time.Since(started))
	if err != nil {
		m.logger.Warn().Err(err).Time("tick", at).Msg("price unavailable; tick skipped")
		m.metrics.IncTick("fetch_failed")
		return nil
	}

	rules, err := m.rules.ListActiveAlertRules(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to list alert rules")
		m.metrics.IncTick("store_failed")
		return nil
	}

	for _, rule := range rules {
		m.evaluate(ctx, rule, price, at)
	}

	m.metrics.IncTick("ok")
	return nil
}

func (m *Monitor) evaluate(ctx context.Context, rule storage.AlertRule, price pricing.Price, at time.Time) {
	if !rule.Operator.Matches(price.FinalPrice, rule.Threshold) {
		return
	}

	// The conditional touch enforces the debounce window; losing the
	// update means another worker already notified within the window.
	won, err := m.rules.TouchAlertRule(ctx, rule.ID, at, m.opts.Debounce)
	if err != nil {
		m.logger.Error().Err(err).Int64("rule_id", rule.ID).Msg("failed to touch alert rule")
		return
	}
	if !won {
		return
	}

	note := notify.Notification{
		RuleID:     rule.ID,
		AlertType:  rule.AlertType,
		Operator:   rule.Operator,
		Threshold:  rule.Threshold,
		FinalPrice: price.FinalPrice,
		BasePrice:  price.BasePrice,
		Markup:     price.Markup,
		TickedAt:   at,
	}
	chatID := strconv.FormatInt(rule.UserID, 10)

	if err := m.notifier.Notify(ctx, chatID, note); err != nil {
		m.logger.Error().Err(err).Int64("rule_id", rule.ID).Msg("failed to deliver notification")
		return
	}
	m.metrics.IncNotification()
}

func (m *Monitor) observeFetch(err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
	}
	m.metrics.ObserveQuoteFetch(status, elapsed.Seconds())
}
