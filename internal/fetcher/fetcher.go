package fetcher

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrTimeout indicates the quote source did not answer within the bound.
	ErrTimeout = errors.New("fetcher: quote request timed out")
	// ErrTransport indicates the quote source was unreachable or answered
	// with a non-success status.
	ErrTransport = errors.New("fetcher: quote transport failure")
	// ErrNoMerchants indicates the filtered order book held no entries.
	ErrNoMerchants = errors.New("fetcher: no merchants for payment channel")
	// ErrMalformedResponse indicates the quote source returned undecodable data.
	ErrMalformedResponse = errors.New("fetcher: malformed quote response")
)

// Entry is one sell-side order-book row.
type Entry struct {
	MerchantName string
	Rate         decimal.Decimal
}

// Book is the filtered sell-side snapshot with its unweighted mean price.
type Book struct {
	Entries   []Entry
	BasePrice decimal.Decimal
}

// BookFetcher retrieves a live sell-side order-book snapshot. Every call is
// a fresh fetch with a bounded timeout and no internal retry; retry policy
// belongs to the caller.
type BookFetcher interface {
	FetchBook(ctx context.Context) (Book, error)
}
