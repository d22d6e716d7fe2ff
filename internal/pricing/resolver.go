// Package pricing resolves the final customer price: live base price from
// the order book plus a group or global markup.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"otcdesk/internal/fetcher"
	"otcdesk/internal/storage"
)

// Price is one resolved quotation.
type Price struct {
	BasePrice  decimal.Decimal
	Markup     decimal.Decimal
	FinalPrice decimal.Decimal
	Source     string
	ResolvedAt time.Time
}

// Resolver composes the book fetcher with markup configuration.
type Resolver struct {
	fetcher       fetcher.BookFetcher
	groups        storage.GroupStore
	observations  storage.ObservationStore
	source        string
	defaultMarkup decimal.Decimal
	logger        zerolog.Logger
}

// NewResolver constructs a price resolver. observations may be nil when
// history logging is not wired. defaultMarkup is only consulted while the
// global settings row has not been written yet.
func NewResolver(f fetcher.BookFetcher, groups storage.GroupStore, observations storage.ObservationStore, source string, defaultMarkup decimal.Decimal, logger zerolog.Logger) *Resolver {
	return &Resolver{
		fetcher:       f,
		groups:        groups,
		observations:  observations,
		source:        source,
		defaultMarkup: defaultMarkup,
		logger:        logger.With().Str("component", "pricing").Logger(),
	}
}

// ResolveMarkup returns the markup for a group, falling back to the global
// default. A stored override of exactly zero is indistinguishable from "no
// override" and falls back as well; this mirrors long-standing production
// behaviour and admins rely on setting zero to reset a group.
func (r *Resolver) ResolveMarkup(ctx context.Context, groupID *int64) (decimal.Decimal, error) {
	if groupID != nil {
		cfg, err := r.groups.GetGroupConfig(ctx, *groupID)
		switch {
		case err == nil:
			if !cfg.Markup.IsZero() {
				return cfg.Markup, nil
			}
		case errors.Is(err, storage.ErrNotFound):
			// fall through to global
		default:
			return decimal.Decimal{}, fmt.Errorf("resolve group markup: %w", err)
		}
	}

	settings, err := r.groups.GetGlobalSettings(ctx)
	switch {
	case err == nil:
		return settings.Markup, nil
	case errors.Is(err, storage.ErrNotFound):
		// Fresh database without a settings row: use the configured default.
		return r.defaultMarkup, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("resolve global markup: %w", err)
	}
}

// ResolvePrice fetches the live base price and applies the markup. Fetch
// failures propagate unchanged so callers can discriminate the failure kind.
// When persistHistory is set, a successful resolution is appended to the
// price-history log; a history write failure is logged, not fatal.
func (r *Resolver) ResolvePrice(ctx context.Context, groupID *int64, persistHistory bool) (Price, error) {
	book, err := r.fetcher.FetchBook(ctx)
	if err != nil {
		return Price{}, err
	}

	markup, err := r.ResolveMarkup(ctx, groupID)
	if err != nil {
		return Price{}, err
	}

	price := Price{
		BasePrice:  book.BasePrice,
		Markup:     markup,
		FinalPrice: book.BasePrice.Add(markup),
		Source:     r.source,
		ResolvedAt: time.Now().UTC(),
	}

	if persistHistory && r.observations != nil {
		obs := storage.PriceObservation{
			BasePrice:  price.BasePrice,
			Markup:     price.Markup,
			FinalPrice: price.FinalPrice,
			Source:     price.Source,
		}
		if err := r.observations.AppendObservation(ctx, obs); err != nil {
			r.logger.Error().Err(err).Msg("failed to append price observation")
		}
	}

	return price, nil
}
