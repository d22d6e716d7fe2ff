package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"otcdesk/internal/fetcher"
	"otcdesk/internal/storage"
)

type staticFetcher struct {
	base decimal.Decimal
	err  error
}

func (f *staticFetcher) FetchBook(ctx context.Context) (fetcher.Book, error) {
	if f.err != nil {
		return fetcher.Book{}, f.err
	}
	return fetcher.Book{BasePrice: f.base}, nil
}

type fakeGroupStore struct {
	groups map[int64]decimal.Decimal
	global decimal.Decimal
	// noGlobalRow simulates a database where the settings row was never
	// written.
	noGlobalRow bool
}

func (s *fakeGroupStore) GetGroupConfig(ctx context.Context, groupID int64) (*storage.GroupConfig, error) {
	markup, ok := s.groups[groupID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.GroupConfig{GroupID: groupID, Markup: markup}, nil
}

func (s *fakeGroupStore) UpsertGroupConfig(ctx context.Context, cfg storage.GroupConfig) error {
	return nil
}

func (s *fakeGroupStore) DeleteGroupConfig(ctx context.Context, groupID int64) error { return nil }

func (s *fakeGroupStore) GetGlobalSettings(ctx context.Context) (storage.GlobalSettings, error) {
	if s.noGlobalRow {
		return storage.GlobalSettings{}, storage.ErrNotFound
	}
	return storage.GlobalSettings{Markup: s.global}, nil
}

func (s *fakeGroupStore) UpdateGlobalSettings(ctx context.Context, settings storage.GlobalSettings) error {
	return nil
}

type recordingObsStore struct {
	appended []storage.PriceObservation
}

func (s *recordingObsStore) AppendObservation(ctx context.Context, obs storage.PriceObservation) error {
	s.appended = append(s.appended, obs)
	return nil
}

func (s *recordingObsStore) ListObservationsBetween(ctx context.Context, from, to time.Time) ([]storage.PriceObservation, error) {
	return nil, nil
}

func (s *recordingObsStore) ListRecentObservations(ctx context.Context, limit int) ([]storage.PriceObservation, error) {
	return nil, nil
}

func groupID(v int64) *int64 { return &v }

func newTestResolver(f fetcher.BookFetcher, groups storage.GroupStore, obs storage.ObservationStore) *Resolver {
	return NewResolver(f, groups, obs, "okx_c2c", decimal.Zero, zerolog.Nop())
}

func TestResolveMarkupGroupOverride(t *testing.T) {
	groups := &fakeGroupStore{
		groups: map[int64]decimal.Decimal{42: decimal.NewFromFloat(0.3)},
		global: decimal.NewFromFloat(0.1),
	}
	r := newTestResolver(&staticFetcher{}, groups, nil)

	markup, err := r.ResolveMarkup(context.Background(), groupID(42))
	if err != nil {
		t.Fatalf("resolve markup: %v", err)
	}
	if !markup.Equal(decimal.NewFromFloat(0.3)) {
		t.Fatalf("expected group override 0.3, got %s", markup)
	}
}

func TestResolveMarkupFallsBackToGlobal(t *testing.T) {
	groups := &fakeGroupStore{
		groups: map[int64]decimal.Decimal{
			7: decimal.Zero, // zero override means unset
		},
		global: decimal.NewFromFloat(0.1),
	}
	r := newTestResolver(&staticFetcher{}, groups, nil)

	for name, id := range map[string]*int64{
		"no group":      nil,
		"unknown group": groupID(99),
		"zero override": groupID(7),
	} {
		markup, err := r.ResolveMarkup(context.Background(), id)
		if err != nil {
			t.Fatalf("%s: resolve markup: %v", name, err)
		}
		if !markup.Equal(decimal.NewFromFloat(0.1)) {
			t.Fatalf("%s: expected global 0.1, got %s", name, markup)
		}
	}
}

func TestResolveMarkupUsesConfiguredDefaultWithoutSettingsRow(t *testing.T) {
	groups := &fakeGroupStore{noGlobalRow: true}
	r := NewResolver(&staticFetcher{}, groups, nil, "okx_c2c", decimal.NewFromFloat(0.15), zerolog.Nop())

	markup, err := r.ResolveMarkup(context.Background(), nil)
	if err != nil {
		t.Fatalf("resolve markup: %v", err)
	}
	if !markup.Equal(decimal.NewFromFloat(0.15)) {
		t.Fatalf("expected configured default 0.15, got %s", markup)
	}
}

func TestResolvePriceAppliesMarkup(t *testing.T) {
	groups := &fakeGroupStore{global: decimal.NewFromFloat(0.2)}
	obs := &recordingObsStore{}
	r := newTestResolver(&staticFetcher{base: decimal.NewFromFloat(7.0)}, groups, obs)

	price, err := r.ResolvePrice(context.Background(), nil, true)
	if err != nil {
		t.Fatalf("resolve price: %v", err)
	}
	if !price.FinalPrice.Equal(decimal.NewFromFloat(7.2)) {
		t.Fatalf("expected final price 7.2, got %s", price.FinalPrice)
	}
	if len(obs.appended) != 1 {
		t.Fatalf("expected one persisted observation, got %d", len(obs.appended))
	}
	if !obs.appended[0].FinalPrice.Equal(price.FinalPrice) {
		t.Fatalf("observation final price mismatch")
	}
}

func TestResolvePriceSkipsHistoryWhenNotRequested(t *testing.T) {
	groups := &fakeGroupStore{global: decimal.Zero}
	obs := &recordingObsStore{}
	r := newTestResolver(&staticFetcher{base: decimal.NewFromFloat(7.0)}, groups, obs)

	if _, err := r.ResolvePrice(context.Background(), nil, false); err != nil {
		t.Fatalf("resolve price: %v", err)
	}
	if len(obs.appended) != 0 {
		t.Fatalf("history must not be written when not requested")
	}
}

func TestResolvePricePropagatesFetchFailure(t *testing.T) {
	groups := &fakeGroupStore{global: decimal.NewFromFloat(0.2)}
	r := newTestResolver(&staticFetcher{err: fetcher.ErrNoMerchants}, groups, nil)

	_, err := r.ResolvePrice(context.Background(), nil, true)
	if !errors.Is(err, fetcher.ErrNoMerchants) {
		t.Fatalf("fetch failure kind must propagate unchanged, got %v", err)
	}
}
