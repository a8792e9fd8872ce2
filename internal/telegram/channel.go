// Package telegram delivers alerts and handles subscriber commands
// through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pumpfun-sentinel/internal/dispatch"
)

const defaultTimeout = 30 * time.Second

// Option configures a Channel.
type Option func(*options)

type options struct {
	endpoint string
	client   *http.Client
	logger   *log.Logger
}

// WithEndpoint overrides the Bot API endpoint. Useful for tests and
// self-hosted Bot API servers; the format string must contain two %s
// verbs (token, method).
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Channel sends alert messages to individual chats.
type Channel struct {
	bot    *tgbotapi.BotAPI
	logger *log.Logger
}

var _ dispatch.DeliveryChannel = (*Channel)(nil)

// NewChannel authorizes against the Bot API and returns a ready
// delivery channel.
func NewChannel(token string, opts ...Option) (*Channel, error) {
	o := options{
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{Timeout: defaultTimeout},
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, o.endpoint, o.client)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}
	o.logger.Printf("[telegram] authorized as @%s", bot.Self.UserName)

	return &Channel{bot: bot, logger: o.logger}, nil
}

// Send delivers one HTML-formatted message to the chat identified by
// userID. Failures are classified into the dispatch error taxonomy.
func (c *Channel) Send(ctx context.Context, userID int64, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(userID, message)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := c.bot.Send(msg); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps Bot API and transport failures onto the dispatch
// error taxonomy: 429 pauses the channel, 403 and "chat not found"
// drop the recipient, everything else is retried.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return &dispatch.TransientError{Err: err}
	}

	switch {
	case apiErr.RetryAfter > 0 || apiErr.Code == http.StatusTooManyRequests:
		return &dispatch.RateLimitError{RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second}
	case apiErr.Code == http.StatusForbidden:
		return &dispatch.PermanentError{Reason: apiErr.Message}
	case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "chat not found"):
		return &dispatch.PermanentError{Reason: apiErr.Message}
	default:
		return &dispatch.TransientError{Err: err}
	}
}
