// Package amount converts user-supplied settlement text into positive
// decimal amounts. Only plain numbers and two-operand expressions are
// accepted; there is deliberately no general expression evaluator.
package amount

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidExpression indicates the token is neither a number nor a
	// two-operand expression.
	ErrInvalidExpression = errors.New("amount: invalid expression")
	// ErrDivisionByZero indicates a division expression with a zero divisor.
	ErrDivisionByZero = errors.New("amount: division by zero")
	// ErrInvalidAmount indicates a parsed amount that is not positive.
	ErrInvalidAmount = errors.New("amount: amount must be positive")
)

var (
	numberRe = regexp.MustCompile(`^[+-]?\d+(?:\.\d+)?$`)
	// Two operands joined by exactly one operator. The second operand may
	// carry its own sign so "100*-2" still parses as one expression.
	exprRe = regexp.MustCompile(`^([+-]?\d+(?:\.\d+)?)\s*([+\-*/])\s*([+-]?\d+(?:\.\d+)?)$`)
)

// Parse resolves the input into one or more positive amounts. Inputs split on
// commas or newlines form a batch; an input containing "@" is never treated
// as a batch so user mentions are not mistaken for amount lists. A batch
// fails atomically on the first invalid token.
func Parse(text string) ([]decimal.Decimal, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidExpression)
	}

	if !isBatch(trimmed) {
		value, err := ParseOne(trimmed)
		if err != nil {
			return nil, err
		}
		return []decimal.Decimal{value}, nil
	}

	tokens := splitTokens(trimmed)
	amounts := make([]decimal.Decimal, 0, len(tokens))
	for _, token := range tokens {
		value, err := ParseOne(token)
		if err != nil {
			return nil, fmt.Errorf("token %q: %w", token, err)
		}
		amounts = append(amounts, value)
	}
	return amounts, nil
}

// ParseOne resolves a single token: a plain number or a two-operand
// arithmetic expression.
func ParseOne(token string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(token)

	if numberRe.MatchString(trimmed) {
		value, err := decimal.NewFromString(trimmed)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidExpression, trimmed)
		}
		return checkPositive(value)
	}

	match := exprRe.FindStringSubmatch(trimmed)
	if match == nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidExpression, trimmed)
	}

	left, err := decimal.NewFromString(match[1])
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidExpression, match[1])
	}
	right, err := decimal.NewFromString(match[3])
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidExpression, match[3])
	}

	var value decimal.Decimal
	switch match[2] {
	case "+":
		value = left.Add(right)
	case "-":
		value = left.Sub(right)
	case "*":
		value = left.Mul(right)
	case "/":
		if right.IsZero() {
			return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrDivisionByZero, trimmed)
		}
		value = left.Div(right)
	}

	return checkPositive(value)
}

func isBatch(text string) bool {
	if strings.ContainsRune(text, '@') {
		return false
	}
	return len(splitTokens(text)) > 1
}

func splitTokens(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	tokens := make([]string, 0, len(raw))
	for _, token := range raw {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	return tokens
}

func checkPositive(value decimal.Decimal) (decimal.Decimal, error) {
	if value.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrInvalidAmount, value.String())
	}
	return value, nil
}
