package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func bookServer(t *testing.T, rows []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("side") != "sell" {
			t.Fatalf("side 参数应为 sell, 实际 %q", r.URL.Query().Get("side"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"sell": rows},
		})
	}))
}

func newTestFetcher(baseURL string) *OKXBook {
	return NewOKXBook(OKXOptions{
		BaseURL:        baseURL,
		QuoteCurrency:  "CNY",
		BaseCurrency:   "USDT",
		PaymentChannel: "aliPay",
		Timeout:        time.Second,
		UserAgent:      "test",
	}, noopLogger())
}

func TestFetchBookAveragesFilteredRates(t *testing.T) {
	srv := bookServer(t, []map[string]any{
		{"nickName": "a", "price": "7.0", "paymentMethods": []string{"aliPay"}},
		{"nickName": "b", "price": "7.2", "paymentMethods": []string{"aliPay", "bank"}},
		{"nickName": "c", "price": "9.9", "paymentMethods": []string{"wxPay"}},
	})
	defer srv.Close()

	book, err := newTestFetcher(srv.URL).FetchBook(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if len(book.Entries) != 2 {
		t.Fatalf("expected 2 filtered entries, got %d", len(book.Entries))
	}
	if !book.BasePrice.Equal(decimal.NewFromFloat(7.1)) {
		t.Fatalf("expected base price 7.1, got %s", book.BasePrice.String())
	}
}

func TestFetchBookNoMerchants(t *testing.T) {
	srv := bookServer(t, []map[string]any{
		{"nickName": "c", "price": "9.9", "paymentMethods": []string{"wxPay"}},
	})
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).FetchBook(context.Background())
	if !errors.Is(err, ErrNoMerchants) {
		t.Fatalf("expected ErrNoMerchants, got %v", err)
	}
}

func TestFetchBookMalformedPrice(t *testing.T) {
	srv := bookServer(t, []map[string]any{
		{"nickName": "a", "price": "seven", "paymentMethods": []string{"aliPay"}},
	})
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).FetchBook(context.Background())
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestFetchBookMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).FetchBook(context.Background())
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestFetchBookTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).FetchBook(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("HTTP 500 应映射为 ErrTransport, 实际 %v", err)
	}
}

func TestFetchBookTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	f := NewOKXBook(OKXOptions{
		BaseURL:        srv.URL,
		PaymentChannel: "aliPay",
		Timeout:        20 * time.Millisecond,
	}, noopLogger())

	_, err := f.FetchBook(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}
