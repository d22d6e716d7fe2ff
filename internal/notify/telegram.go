package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"otcdesk/internal/storage"
)

// Notification 封装一次价格告警的上下文。
type Notification struct {
	RuleID     int64
	AlertType  string
	Operator   storage.CompareOp
	Threshold  decimal.Decimal
	FinalPrice decimal.Decimal
	BasePrice  decimal.Decimal
	Markup     decimal.Decimal
	TickedAt   time.Time
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, chatID string, note Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, chatID string, note Notification) error {
	payload := map[string]string{
		"chat_id": chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Int64("rule_id", note.RuleID).
		Str("chat_id", chatID).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[USDT Price Alert]\n")
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", note.TickedAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Price: %s CNY/USDT (base %s + markup %s)\n",
		note.FinalPrice.StringFixed(3), note.BasePrice.StringFixed(3), note.Markup.StringFixed(3)))
	builder.WriteString(fmt.Sprintf("Rule: price %s %s\n", note.Operator, note.Threshold.StringFixed(3)))
	if note.AlertType != "" {
		builder.WriteString(fmt.Sprintf("Type: %s\n", note.AlertType))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
