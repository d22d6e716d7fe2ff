package amount

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParsePlainNumber(t *testing.T) {
	amounts, err := Parse("1000")
	if err != nil {
		t.Fatalf("plain number should parse: %v", err)
	}
	if len(amounts) != 1 || !amounts[0].Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected [1000], got %v", amounts)
	}
}

func TestParseTwoOperandExpression(t *testing.T) {
	cases := map[string]decimal.Decimal{
		"20000-200": decimal.NewFromInt(19800),
		"100+50":    decimal.NewFromInt(150),
		"7 * 3":     decimal.NewFromInt(21),
		"100/4":     decimal.NewFromInt(25),
		" 12.5+0.5": decimal.NewFromInt(13),
	}
	for input, want := range cases {
		amounts, err := Parse(input)
		if err != nil {
			t.Fatalf("%q should parse: %v", input, err)
		}
		if !amounts[0].Equal(want) {
			t.Fatalf("%q: expected %s, got %s", input, want, amounts[0])
		}
	}
}

func TestParseDivisionByZero(t *testing.T) {
	if _, err := Parse("100/0"); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestParseInvalidExpression(t *testing.T) {
	for _, input := range []string{"abc", "1+2+3", "", "10 20", "1000x"} {
		if _, err := Parse(input); !errors.Is(err, ErrInvalidExpression) {
			t.Fatalf("%q: expected ErrInvalidExpression, got %v", input, err)
		}
	}
}

func TestParseNonPositiveAmount(t *testing.T) {
	for _, input := range []string{"0", "-5", "100-100", "50-80"} {
		if _, err := Parse(input); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q: expected ErrInvalidAmount, got %v", input, err)
		}
	}
}

func TestParseBatch(t *testing.T) {
	amounts, err := Parse("1000,2000,3000")
	if err != nil {
		t.Fatalf("batch should parse: %v", err)
	}
	want := []int64{1000, 2000, 3000}
	if len(amounts) != len(want) {
		t.Fatalf("expected %d amounts, got %d", len(want), len(amounts))
	}
	for i, w := range want {
		if !amounts[i].Equal(decimal.NewFromInt(w)) {
			t.Fatalf("index %d: expected %d, got %s", i, w, amounts[i])
		}
	}
}

func TestParseBatchNewlinesAndExpressions(t *testing.T) {
	amounts, err := Parse("1000\n500+500, 300")
	if err != nil {
		t.Fatalf("mixed batch should parse: %v", err)
	}
	if len(amounts) != 3 || !amounts[1].Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected batch result: %v", amounts)
	}
}

func TestParseBatchFailsAtomically(t *testing.T) {
	_, err := Parse("1000,abc,3000")
	if !errors.Is(err, ErrInvalidExpression) {
		t.Fatalf("expected ErrInvalidExpression, got %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "abc") {
		t.Fatalf("error should name the offending token, got %q", got)
	}
}

func TestParseMentionNeverBatches(t *testing.T) {
	// "@" marks a username mention, so the comma must not split a batch.
	if _, err := Parse("user@name,1000"); !errors.Is(err, ErrInvalidExpression) {
		t.Fatalf("expected ErrInvalidExpression, got %v", err)
	}
}
