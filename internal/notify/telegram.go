// Package notify delivers run reports to Telegram chats.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"scheduler/internal/engine"
)

// maxListed caps the failures spelled out in a summary.
const maxListed = 20

// Sender is the subset of tgbotapi.BotAPI used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		RetryDelays: []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Telegram posts a summary and the workbook to every configured chat.
type Telegram struct {
	bot     Sender
	chatIDs []int64
	retry   RetryConfig
	logger  zerolog.Logger
}

// NewBotAPI connects to Telegram with token.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	return bot, nil
}

func NewTelegram(bot Sender, chatIDs []int64, retry RetryConfig, logger zerolog.Logger) *Telegram {
	return &Telegram{
		bot:     bot,
		chatIDs: chatIDs,
		retry:   retry,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// SendReport posts summary followed by the named document to each chat.
// Delivery continues past a failing chat; the errors are joined.
func (t *Telegram) SendReport(ctx context.Context, summary, filename string, data []byte) error {
	var errs []error
	for _, chatID := range t.chatIDs {
		msg := tgbotapi.NewMessage(chatID, summary)
		if err := t.sendWithRetry(ctx, chatID, msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}

		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
		if err := t.sendWithRetry(ctx, chatID, doc); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		t.logger.Info().Int64("chat_id", chatID).Str("file", filename).Msg("report delivered")
	}
	return errors.Join(errs...)
}

func (t *Telegram) sendWithRetry(ctx context.Context, chatID int64, c tgbotapi.Chattable) error {
	var lastErr error
	for attempt := 0; attempt <= t.retry.MaxRetries; attempt++ {
		_, err := t.bot.Send(c)
		if err == nil {
			return nil
		}
		lastErr = err

		wait := t.delay(attempt)
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			switch tgErr.Code {
			case 400, 403:
				return err
			case 429:
				if tgErr.RetryAfter > 0 {
					wait = time.Duration(tgErr.RetryAfter) * time.Second
				}
			}
		}
		if attempt == t.retry.MaxRetries {
			break
		}

		t.logger.Warn().Err(err).
			Int64("chat_id", chatID).
			Int("attempt", attempt+1).
			Dur("delay", wait).
			Msg("retrying telegram send")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (t *Telegram) delay(attempt int) time.Duration {
	if len(t.retry.RetryDelays) == 0 {
		return 0
	}
	if attempt >= len(t.retry.RetryDelays) {
		return t.retry.RetryDelays[len(t.retry.RetryDelays)-1]
	}
	return t.retry.RetryDelays[attempt]
}

// Summary renders a short plain-text digest of res.
func Summary(runID string, res *engine.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schedule run %s\nplaced: %d, failed: %d, skipped: %d\n",
		runID, len(res.Placements), len(res.Failures), len(res.Skipped))

	for i, f := range res.Failures {
		if i == maxListed {
			fmt.Fprintf(&b, "... and %d more\n", len(res.Failures)-maxListed)
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", f.Entity.Label(), engine.Reason(f.Err))
	}
	return strings.TrimSuffix(b.String(), "\n")
}
