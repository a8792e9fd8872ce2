package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pumpfun-sentinel/internal/feed"
	"pumpfun-sentinel/internal/observability"
	"pumpfun-sentinel/internal/registry"
	"pumpfun-sentinel/internal/storage"
)

const helpText = `<b>Commands</b>

/subscribe — receive alerts for new token launches
/unsubscribe — stop receiving alerts
/pause — keep your account, silence alerts
/resume — re-enable paused alerts
/scan &lt;address&gt; — risk report for a tracked token
/status — your tier, state and remaining scans
/help — this message`

// Bot polls the Bot API for updates and handles subscriber commands.
// It shares the Channel's authorized connection, so one token serves
// both directions.
type Bot struct {
	bot      *tgbotapi.BotAPI
	registry *registry.Registry
	tokens   storage.TokenStore
	logger   *log.Logger
}

// NewBot wraps an authorized Channel with command handling.
func NewBot(channel *Channel, reg *registry.Registry, tokens storage.TokenStore, logger *log.Logger) *Bot {
	if logger == nil {
		logger = log.Default()
	}
	return &Bot{
		bot:      channel.bot,
		registry: reg,
		tokens:   tokens,
		logger:   logger,
	}
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	userID := message.Chat.ID

	switch message.Command() {
	case "start":
		if _, err := b.registry.EnsureSubscriber(ctx, userID); err != nil {
			b.replyError(userID, err)
			return
		}
		b.reply(userID, "👋 Welcome to pumpfun-sentinel. Use /subscribe to start receiving launch alerts, or /help for all commands.")

	case "help":
		b.reply(userID, helpText)

	case "subscribe":
		if _, err := b.registry.EnsureSubscriber(ctx, userID); err != nil {
			b.replyError(userID, err)
			return
		}
		if err := b.registry.Subscribe(ctx, userID); err != nil {
			if errors.Is(err, registry.ErrInvalidTransition) {
				b.reply(userID, "Your alerts are paused. Use /resume to re-enable them.")
				return
			}
			b.replyError(userID, err)
			return
		}
		b.reply(userID, "✅ Subscribed. You will be alerted on every new launch.")

	case "unsubscribe":
		if err := b.registry.Unsubscribe(ctx, userID); err != nil {
			b.replyError(userID, err)
			return
		}
		b.reply(userID, "Unsubscribed. Use /subscribe any time to come back.")

	case "pause":
		if err := b.registry.Pause(ctx, userID); err != nil {
			if errors.Is(err, registry.ErrInvalidTransition) {
				b.reply(userID, "Alerts can only be paused while subscribed.")
				return
			}
			b.replyError(userID, err)
			return
		}
		b.reply(userID, "⏸ Alerts paused. Use /resume when you are ready.")

	case "resume":
		if err := b.registry.Resume(ctx, userID); err != nil {
			if errors.Is(err, registry.ErrInvalidTransition) {
				b.reply(userID, "Nothing to resume. Use /subscribe to enable alerts.")
				return
			}
			b.replyError(userID, err)
			return
		}
		b.reply(userID, "▶️ Alerts resumed.")

	case "status":
		b.handleStatus(ctx, userID)

	case "scan":
		b.handleScan(ctx, userID, strings.TrimSpace(message.CommandArguments()))

	default:
		b.reply(userID, "Unknown command. Use /help to see what I can do.")
	}
}

func (b *Bot) handleStatus(ctx context.Context, userID int64) {
	status, err := b.registry.Status(ctx, userID)
	if err != nil {
		b.replyError(userID, err)
		return
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "<b>Your account</b>\n\n")
	fmt.Fprintf(&msg, "Tier: %s\n", status.Tier)
	fmt.Fprintf(&msg, "Alerts: %s\n", strings.ToLower(string(status.Subscriber.State)))
	fmt.Fprintf(&msg, "Scans used today: %d / %d", status.ScansUsed, status.DailyLimit)
	b.reply(userID, msg.String())
}

func (b *Bot) handleScan(ctx context.Context, userID int64, address string) {
	if address == "" {
		b.reply(userID, "Usage: /scan &lt;token address&gt;")
		return
	}
	if err := feed.ValidateAddress(address); err != nil {
		observability.RecordScan("invalid_address")
		b.reply(userID, "❌ That does not look like a valid token address.")
		return
	}
	if _, err := b.registry.EnsureSubscriber(ctx, userID); err != nil {
		b.replyError(userID, err)
		return
	}
	if err := b.registry.TryConsumeScan(ctx, userID); err != nil {
		if errors.Is(err, registry.ErrQuotaExceeded) {
			observability.RecordScan("quota_exhausted")
			b.reply(userID, "🚫 Daily scan quota exhausted. Quota resets 24h after your first scan of the day.")
			return
		}
		b.replyError(userID, err)
		return
	}

	token, err := b.tokens.GetByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			observability.RecordScan("not_tracked")
			b.reply(userID, "🔍 Token not tracked yet. Only launches seen by the feed can be scanned.")
			return
		}
		b.replyError(userID, err)
		return
	}
	assessment, err := b.tokens.GetAssessment(ctx, address)
	if err != nil {
		b.replyError(userID, err)
		return
	}
	observability.RecordScan("")
	b.reply(userID, Render(token, assessment))
}

func (b *Bot) reply(userID int64, text string) {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Printf("[telegram] reply to %d: %v", userID, err)
	}
}

func (b *Bot) replyError(userID int64, err error) {
	b.logger.Printf("[telegram] command for %d: %v", userID, err)
	b.reply(userID, "Something went wrong, please try again.")
}
