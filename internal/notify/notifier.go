// Package notify sends cleanup progress and summaries to an operator
// chat over the Telegram Bot API. It implements the engine's progress
// sink; the interactive bot UI itself lives outside this module.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/biot9999/newtdata/internal/cleaner"
	"github.com/biot9999/newtdata/internal/config"
	"github.com/biot9999/newtdata/internal/logger"
)

// BotAPI is the slice of the telego bot the notifier needs; kept
// narrow so tests can substitute a mock.
type BotAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Notifier posts job progress and the final summary to one chat.
type Notifier struct {
	bot    BotAPI
	chatID int64
	every  int
	logger *logger.Logger
}

// New creates a notifier from configuration, initializing the Bot API
// client.
func New(cfg config.NotifyConfig, log *logger.Logger) (*Notifier, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifier bot: %w", err)
	}
	return NewWithBot(bot, cfg.ChatID, cfg.ProgressEvery, log), nil
}

// NewWithBot creates a notifier over an existing Bot API client.
func NewWithBot(bot BotAPI, chatID int64, every int, log *logger.Logger) *Notifier {
	if every < 1 {
		every = 1
	}
	return &Notifier{
		bot:    bot,
		chatID: chatID,
		every:  every,
		logger: log,
	}
}

// Progress is a cleaner.ProgressFunc. It posts every Nth record and the
// final one; send failures are logged and swallowed, a lost progress
// message must never disturb the job.
func (n *Notifier) Progress(p cleaner.Progress) {
	if p.Processed%n.every != 0 && p.Processed != p.Total {
		return
	}

	n.send(context.Background(), formatProgress(p))
}

// Summary posts the final job summary.
func (n *Notifier) Summary(ctx context.Context, sum *cleaner.Summary) error {
	_, err := n.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: n.chatID},
		Text:   formatSummary(sum),
	})
	if err != nil {
		return fmt.Errorf("failed to send summary notification: %w", err)
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, text string) {
	_, err := n.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: n.chatID},
		Text:   text,
	})
	if err != nil {
		n.logger.Warn("failed to send progress notification",
			logger.Field{Key: "error", Value: err})
	}
}

// formatProgress renders one progress snapshot.
func formatProgress(p cleaner.Progress) string {
	return fmt.Sprintf("🧹 %s: %d/%d processed\nleft: %d groups, %d channels | histories: %d | errors: %d",
		p.Account, p.Processed, p.Total,
		p.Stats.GroupsLeft, p.Stats.ChannelsLeft,
		p.Stats.HistoriesDeleted, p.Stats.Errors)
}

// formatSummary renders the final summary message.
func formatSummary(sum *cleaner.Summary) string {
	var b strings.Builder

	if sum.Cancelled {
		fmt.Fprintf(&b, "⚠️ Cleanup cancelled: %s\n", sum.Account)
	} else {
		fmt.Fprintf(&b, "✅ Cleanup finished: %s\n", sum.Account)
	}
	fmt.Fprintf(&b, "elapsed: %s\n", sum.Elapsed.Round(time.Second))
	fmt.Fprintf(&b, "groups left: %d\n", sum.Stats.GroupsLeft)
	fmt.Fprintf(&b, "channels left: %d\n", sum.Stats.ChannelsLeft)
	fmt.Fprintf(&b, "histories deleted: %d\n", sum.Stats.HistoriesDeleted)
	fmt.Fprintf(&b, "contacts deleted: %d\n", sum.Stats.ContactsDeleted)
	fmt.Fprintf(&b, "dialogs archived: %d\n", sum.Stats.DialogsClosed)
	fmt.Fprintf(&b, "skipped: %d, errors: %d\n", sum.Stats.Skipped, sum.Stats.Errors)
	fmt.Fprintf(&b, "report: %s", sum.JSONPath)

	return b.String()
}
