package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"otcdesk/internal/fetcher"
	"otcdesk/internal/notify"
	"otcdesk/internal/pricing"
	"otcdesk/internal/storage"
)

type sequenceResolver struct {
	mu     sync.Mutex
	prices []pricing.Price
	errs   []error
	calls  int
}

func (r *sequenceResolver) ResolvePrice(ctx context.Context, groupID *int64, persistHistory bool) (pricing.Price, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls
	r.calls++
	if i < len(r.errs) && r.errs[i] != nil {
		return pricing.Price{}, r.errs[i]
	}
	if i >= len(r.prices) {
		i = len(r.prices) - 1
	}
	return r.prices[i], nil
}

type memRuleStore struct {
	mu    sync.Mutex
	rules map[int64]*storage.AlertRule
}

func newMemRuleStore(rules ...storage.AlertRule) *memRuleStore {
	s := &memRuleStore{rules: make(map[int64]*storage.AlertRule)}
	for i := range rules {
		r := rules[i]
		s.rules[r.ID] = &r
	}
	return s
}

func (s *memRuleStore) CreateAlertRule(ctx context.Context, rule storage.AlertRule) (storage.AlertRule, error) {
	return rule, nil
}

func (s *memRuleStore) ListActiveAlertRules(ctx context.Context) ([]storage.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.AlertRule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.IsActive {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memRuleStore) ListAlertRulesByUser(ctx context.Context, userID int64) ([]storage.AlertRule, error) {
	return nil, nil
}

func (s *memRuleStore) DeactivateAlertRule(ctx context.Context, id, userID int64) error { return nil }

func (s *memRuleStore) TouchAlertRule(ctx context.Context, id int64, now time.Time, debounce time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok || !r.IsActive {
		return false, nil
	}
	if r.LastNotifiedAt != nil && r.LastNotifiedAt.After(now.Add(-debounce)) {
		return false, nil
	}
	ts := now
	r.LastNotifiedAt = &ts
	r.NotificationCount++
	return true, nil
}

func (s *memRuleStore) rule(id int64) storage.AlertRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.rules[id]
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []notify.Notification
	chats []string
}

func (n *recordingNotifier) Notify(ctx context.Context, chatID string, note notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	n.chats = append(n.chats, chatID)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notes)
}

func fixedPrice(final float64) pricing.Price {
	f := decimal.NewFromFloat(final)
	return pricing.Price{BasePrice: f, FinalPrice: f}
}

func rule(id int64, op storage.CompareOp, threshold float64, lastNotified *time.Time) storage.AlertRule {
	return storage.AlertRule{
		ID:             id,
		UserID:         id * 100,
		AlertType:      "price",
		Operator:       op,
		Threshold:      decimal.NewFromFloat(threshold),
		IsActive:       true,
		LastNotifiedAt: lastNotified,
	}
}

func newTestMonitor(resolver PriceResolver, rules storage.AlertRuleStore, notifier notify.Notifier) *Monitor {
	return New(resolver, rules, notifier, nil, Options{Debounce: 5 * time.Minute}, zerolog.Nop())
}

func TestTickNotifiesMatchingRule(t *testing.T) {
	store := newMemRuleStore(rule(1, storage.OpGreater, 7.5, nil))
	notifier := &recordingNotifier{}
	m := newTestMonitor(&sequenceResolver{prices: []pricing.Price{fixedPrice(7.6)}}, store, notifier)

	now := time.Now().UTC()
	if err := m.Tick(context.Background(), now); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if notifier.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", notifier.count())
	}
	if notifier.chats[0] != "100" {
		t.Fatalf("notification must target the rule owner, got %s", notifier.chats[0])
	}

	updated := store.rule(1)
	if updated.LastNotifiedAt == nil || !updated.LastNotifiedAt.Equal(now) {
		t.Fatal("last_notified_at must advance to the tick time")
	}
	if updated.NotificationCount != 1 {
		t.Fatalf("notification_count must increment, got %d", updated.NotificationCount)
	}
}

func TestTickSkipsNonMatchingRule(t *testing.T) {
	store := newMemRuleStore(rule(1, storage.OpLess, 7.0, nil))
	notifier := &recordingNotifier{}
	m := newTestMonitor(&sequenceResolver{prices: []pricing.Price{fixedPrice(7.6)}}, store, notifier)

	if err := m.Tick(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if notifier.count() != 0 {
		t.Fatalf("non-matching rule must not notify, got %d", notifier.count())
	}
	if store.rule(1).LastNotifiedAt != nil {
		t.Fatal("last_notified_at must stay unset for a non-matching rule")
	}
}

func TestDebounceWindow(t *testing.T) {
	now := time.Now().UTC()

	fourAgo := now.Add(-4 * time.Minute)
	recent := newMemRuleStore(rule(1, storage.OpGreaterEqual, 7.0, &fourAgo))
	notifier := &recordingNotifier{}
	m := newTestMonitor(&sequenceResolver{prices: []pricing.Price{fixedPrice(7.6)}}, recent, notifier)
	if err := m.Tick(context.Background(), now); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if notifier.count() != 0 {
		t.Fatal("notification inside the debounce window must be suppressed")
	}
	if got := recent.rule(1); !got.LastNotifiedAt.Equal(fourAgo) {
		t.Fatal("suppressed rule must keep its last_notified_at")
	}

	sixAgo := now.Add(-6 * time.Minute)
	stale := newMemRuleStore(rule(2, storage.OpGreaterEqual, 7.0, &sixAgo))
	notifier = &recordingNotifier{}
	m = newTestMonitor(&sequenceResolver{prices: []pricing.Price{fixedPrice(7.6)}}, stale, notifier)
	if err := m.Tick(context.Background(), now); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("expired debounce must notify exactly once, got %d", notifier.count())
	}
	if got := stale.rule(2); !got.LastNotifiedAt.Equal(now) {
		t.Fatal("last_notified_at must advance to the tick time")
	}
}

func TestFetchFailureIsolation(t *testing.T) {
	store := newMemRuleStore(rule(1, storage.OpGreater, 7.0, nil))
	notifier := &recordingNotifier{}
	resolver := &sequenceResolver{
		prices: []pricing.Price{fixedPrice(7.6), fixedPrice(7.6)},
		errs:   []error{fetcher.ErrTimeout, nil},
	}
	m := newTestMonitor(resolver, store, notifier)

	// Failing tick: absorbed, zero notifications.
	if err := m.Tick(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("failing tick must not raise: %v", err)
	}
	if notifier.count() != 0 {
		t.Fatal("failing tick must emit no notifications")
	}

	// Subsequent tick proceeds normally.
	if err := m.Tick(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("recovery tick must notify, got %d", notifier.count())
	}
}

func TestComparisonOperators(t *testing.T) {
	price := decimal.NewFromFloat(7.5)
	cases := []struct {
		op        storage.CompareOp
		threshold float64
		want      bool
	}{
		{storage.OpGreater, 7.4, true},
		{storage.OpGreater, 7.5, false},
		{storage.OpGreaterEqual, 7.5, true},
		{storage.OpLess, 7.6, true},
		{storage.OpLess, 7.5, false},
		{storage.OpLessEqual, 7.5, true},
	}
	for _, tc := range cases {
		if got := tc.op.Matches(price, decimal.NewFromFloat(tc.threshold)); got != tc.want {
			t.Fatalf("7.5 %s %v: expected %v, got %v", tc.op, tc.threshold, tc.want, got)
		}
	}
}
