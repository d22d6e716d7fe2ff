// Package settlement turns parsed amounts and resolved prices into
// settlement quotes and persisted transactions, and owns the transaction
// lifecycle.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"otcdesk/internal/amount"
	"otcdesk/internal/metrics"
	"otcdesk/internal/pricing"
	"otcdesk/internal/storage"
)

// PriceResolver is the slice of pricing.Resolver the calculator needs.
type PriceResolver interface {
	ResolvePrice(ctx context.Context, groupID *int64, persistHistory bool) (pricing.Price, error)
}

// Quote is one computed settlement offer; it is not yet persisted.
type Quote struct {
	USDTAmount decimal.Decimal
	BasePrice  decimal.Decimal
	Markup     decimal.Decimal
	FinalPrice decimal.Decimal
	CNYTotal   decimal.Decimal
	GroupID    *int64
	ResolvedAt time.Time
}

// Calculator combines price resolution with amount parsing.
type Calculator struct {
	resolver PriceResolver
	groups   storage.GroupStore
	txs      storage.TransactionStore
	node     *snowflake.Node
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewCalculator constructs a settlement calculator. nodeID distinguishes
// concurrent workers so generated transaction ids never collide. m may be
// nil when instrumentation is not wired.
func NewCalculator(resolver PriceResolver, groups storage.GroupStore, txs storage.TransactionStore, nodeID int64, m *metrics.Metrics, logger zerolog.Logger) (*Calculator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node: %w", err)
	}
	return &Calculator{
		resolver: resolver,
		groups:   groups,
		txs:      txs,
		node:     node,
		metrics:  m,
		logger:   logger.With().Str("component", "settlement").Logger(),
	}, nil
}

// Calculate parses amountText (single or batch) and prices every amount at
// one resolved price. User-input failures surface as amount.Err* sentinels;
// price-resolution failures propagate unchanged.
func (c *Calculator) Calculate(ctx context.Context, amountText string, groupID *int64) ([]Quote, error) {
	amounts, err := amount.Parse(amountText)
	if err != nil {
		c.metrics.IncSettlement("invalid_input")
		return nil, err
	}

	price, err := c.resolver.ResolvePrice(ctx, groupID, false)
	if err != nil {
		c.metrics.IncSettlement("price_unavailable")
		return nil, err
	}

	quotes := make([]Quote, 0, len(amounts))
	for _, usdt := range amounts {
		quotes = append(quotes, Quote{
			USDTAmount: usdt,
			BasePrice:  price.BasePrice,
			Markup:     price.Markup,
			FinalPrice: price.FinalPrice,
			CNYTotal:   price.FinalPrice.Mul(usdt),
			GroupID:    groupID,
			ResolvedAt: price.ResolvedAt,
		})
	}
	c.metrics.IncSettlement("ok")
	return quotes, nil
}

// CalculateOne is Calculate for inputs that must resolve to a single amount.
func (c *Calculator) CalculateOne(ctx context.Context, amountText string, groupID *int64) (Quote, error) {
	quotes, err := c.Calculate(ctx, amountText, groupID)
	if err != nil {
		return Quote{}, err
	}
	if len(quotes) != 1 {
		return Quote{}, fmt.Errorf("%w: expected a single amount", amount.ErrInvalidAmount)
	}
	return quotes[0], nil
}

// CreateTransaction materialises a quote as a pending transaction owned by
// userID. The settlement address follows markup precedence: group override
// first, then the global default.
func (c *Calculator) CreateTransaction(ctx context.Context, quote Quote, userID int64) (storage.Transaction, error) {
	address, err := c.settlementAddress(ctx, quote.GroupID)
	if err != nil {
		return storage.Transaction{}, err
	}

	tx := storage.Transaction{
		TransactionID: c.node.Generate().String(),
		GroupID:       quote.GroupID,
		UserID:        userID,
		CNYAmount:     quote.CNYTotal,
		USDTAmount:    quote.USDTAmount,
		ExchangeRate:  quote.FinalPrice,
		Markup:        quote.Markup,
		USDTAddress:   address,
		Status:        storage.TxPending,
		CreatedAt:     time.Now().UTC(),
	}

	if err := c.txs.InsertTransaction(ctx, tx); err != nil {
		return storage.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	c.logger.Info().
		Str("transaction_id", tx.TransactionID).
		Int64("user_id", userID).
		Str("usdt_amount", tx.USDTAmount.String()).
		Str("cny_amount", tx.CNYAmount.String()).
		Msg("transaction created")

	return tx, nil
}

func (c *Calculator) settlementAddress(ctx context.Context, groupID *int64) (*string, error) {
	if groupID != nil {
		cfg, err := c.groups.GetGroupConfig(ctx, *groupID)
		switch {
		case err == nil:
			if cfg.USDTAddress != "" {
				addr := cfg.USDTAddress
				return &addr, nil
			}
		case errors.Is(err, storage.ErrNotFound):
		default:
			return nil, fmt.Errorf("resolve group address: %w", err)
		}
	}

	settings, err := c.groups.GetGlobalSettings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve global address: %w", err)
	}
	if settings.USDTAddress == "" {
		return nil, nil
	}
	addr := settings.USDTAddress
	return &addr, nil
}
