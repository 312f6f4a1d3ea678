package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
)

const telegramAPI = "https://api.telegram.org"

// Telegram sends alerts through the Bot API sendMessage method.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// FromConfig returns a Telegram notifier when credentials are set and Nop otherwise.
func FromConfig(config *config.Config) Notifier {
	if !config.AlertsEnabled() {
		return Nop{}
	}
	return NewTelegram(config.TelegramBotToken, config.TelegramChatID)
}

func (t *Telegram) IsEnabled() bool {
	return t.token != "" && t.chatID != ""
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends text as an HTML message. text is escaped, so error strings containing
// markup characters are delivered verbatim.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if !t.IsEnabled() {
		return nil
	}

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("parse_mode", "HTML")
	form.Set("text", html.EscapeString(text))

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	req.URL.RawQuery = form.Encode()

	resp, err := t.client.Do(req)
	if err != nil {
		// the error text would include the bot token through the URL
		return fmt.Errorf("telegram: request failed")
	}
	defer resp.Body.Close()

	var body telegramResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)
	if resp.StatusCode != http.StatusOK || !body.OK {
		return fmt.Errorf("telegram: HTTP %d: %s", resp.StatusCode, body.Description)
	}
	return nil
}
