package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const booksPath = "/v3/c2c/tradingOrders/books"

// OKXOptions parameterise the OKX C2C order-book fetcher.
type OKXOptions struct {
	BaseURL        string
	QuoteCurrency  string
	BaseCurrency   string
	PaymentChannel string
	Timeout        time.Duration
	UserAgent      string
}

// OKXBook fetches sell-side C2C quotes from OKX.
type OKXBook struct {
	opts    OKXOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewOKXBook constructs an order-book fetcher.
func NewOKXBook(opts OKXOptions, logger zerolog.Logger) *OKXBook {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.okx.com"
	}

	return &OKXBook{
		opts:    opts,
		logger:  logger.With().Str("component", "okx_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchBook retrieves the sell-side book for the configured pair, keeps only
// merchants accepting the configured payment channel, and averages their
// rates into the base price.
func (f *OKXBook) FetchBook(ctx context.Context) (Book, error) {
	if f.opts.PaymentChannel == "" {
		return Book{}, fmt.Errorf("%w: payment channel not configured", ErrNoMerchants)
	}

	query := url.Values{}
	query.Set("quoteCurrency", defaultStr(f.opts.QuoteCurrency, "CNY"))
	query.Set("baseCurrency", defaultStr(f.opts.BaseCurrency, "USDT"))
	query.Set("side", "sell")
	query.Set("paymentMethod", f.opts.PaymentChannel)

	endpoint := f.baseURL + booksPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Book{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(f.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "otcdesk/1.0")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Book{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return Book{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return Book{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return Book{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return Book{}, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var booksRes booksResponse
	if err := json.Unmarshal(payload, &booksRes); err != nil {
		return Book{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	entries, err := filterEntries(booksRes.Data.Sell, f.opts.PaymentChannel)
	if err != nil {
		return Book{}, err
	}
	if len(entries) == 0 {
		return Book{}, fmt.Errorf("%w: channel %q", ErrNoMerchants, f.opts.PaymentChannel)
	}

	sum := decimal.Zero
	for _, entry := range entries {
		sum = sum.Add(entry.Rate)
	}
	base := sum.Div(decimal.NewFromInt(int64(len(entries))))

	f.logger.Debug().Int("merchants", len(entries)).Str("base_price", base.String()).Msg("book fetched")

	return Book{Entries: entries, BasePrice: base}, nil
}

func filterEntries(rows []sellRow, channel string) ([]Entry, error) {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if !acceptsChannel(row.PaymentMethods, channel) {
			continue
		}
		rate, err := decimal.NewFromString(row.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: price %q", ErrMalformedResponse, row.Price)
		}
		entries = append(entries, Entry{MerchantName: row.NickName, Rate: rate})
	}
	return entries, nil
}

func acceptsChannel(methods []string, channel string) bool {
	for _, m := range methods {
		if strings.EqualFold(m, channel) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func defaultStr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

type booksResponse struct {
	Code int `json:"code"`
	Data struct {
		Sell []sellRow `json:"sell"`
	} `json:"data"`
}

type sellRow struct {
	NickName       string   `json:"nickName"`
	Price          string   `json:"price"`
	PaymentMethods []string `json:"paymentMethods"`
}

var _ BookFetcher = (*OKXBook)(nil)
