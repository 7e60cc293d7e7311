package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"comment-moderation/internal/models"
	"comment-moderation/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const previewLength = 150

// Decider applies a moderator decision to a pending comment.
type Decider interface {
	Approve(ctx context.Context, id string) (*models.Comment, error)
	Reject(ctx context.Context, id string) error
}

// Bot posts pending comments to a moderator chat with approve/reject
// buttons and applies the button presses.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewBot creates a new Telegram bot instance
func NewBot(token string, chatID int64, logger *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized",
		zap.String("username", botAPI.Self.UserName),
		zap.Int64("chat_id", chatID))

	return &Bot{api: botAPI, chatID: chatID, logger: logger}, nil
}

// Start listens for button presses until ctx is done.
func (b *Bot) Start(ctx context.Context, decider Decider) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started, waiting for updates")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallbackQuery(ctx, decider, update.CallbackQuery)
			}
		}
	}
}

// NotifyPending implements service.Notifier.
func (b *Bot) NotifyPending(_ context.Context, comment *models.Comment) error {
	msg := tgbotapi.NewMessage(b.chatID, FormatPending(comment))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", callbackData(actionApprove, comment.ID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", callbackData(actionReject, comment.ID)),
		),
	)

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	b.logger.Debug("Pending comment notification sent", zap.String("id", comment.ID))
	return nil
}

func (b *Bot) handleCallbackQuery(ctx context.Context, decider Decider, query *tgbotapi.CallbackQuery) {
	b.logger.Info("Received callback query",
		zap.String("data", query.Data),
		zap.Int64("user_id", query.From.ID))

	if query.Message == nil || query.Message.Chat == nil || query.Message.Chat.ID != b.chatID {
		b.answer(query.ID, "Not allowed")
		return
	}

	action, id, err := parseCallback(query.Data)
	if err != nil {
		b.logger.Error("Failed to parse callback data", zap.String("data", query.Data), zap.Error(err))
		b.answer(query.ID, "Unknown action")
		return
	}

	result := applyDecision(ctx, decider, action, id)
	b.answer(query.ID, result)

	// Replace the buttons with the outcome.
	edit := tgbotapi.NewEditMessageText(
		query.Message.Chat.ID,
		query.Message.MessageID,
		query.Message.Text+"\n\n"+result,
	)
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error("Failed to edit message", zap.Error(err))
	}
}

func (b *Bot) answer(queryID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		b.logger.Error("Failed to send callback response", zap.Error(err))
	}
}

const (
	actionApprove = "approve"
	actionReject  = "reject"
)

func callbackData(action, id string) string {
	return action + ":" + id
}

// parseCallback splits "approve:<id>" or "reject:<id>".
func parseCallback(data string) (string, string, error) {
	action, id, ok := strings.Cut(data, ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("invalid callback format %q", data)
	}
	if action != actionApprove && action != actionReject {
		return "", "", fmt.Errorf("unknown action %q", action)
	}
	return action, id, nil
}

// applyDecision runs the action and returns the text shown to the moderator.
func applyDecision(ctx context.Context, decider Decider, action, id string) string {
	var err error
	switch action {
	case actionApprove:
		_, err = decider.Approve(ctx, id)
	case actionReject:
		err = decider.Reject(ctx, id)
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		return "ℹ️ Already handled"
	case err != nil:
		return "⚠️ Failed: " + err.Error()
	case action == actionApprove:
		return "✅ Approved"
	default:
		return "❌ Rejected"
	}
}

// FormatPending renders the notification text for one pending comment.
func FormatPending(comment *models.Comment) string {
	preview := comment.Text
	if utf8.RuneCountInString(preview) > previewLength {
		preview = string([]rune(preview)[:previewLength]) + "..."
	}
	return fmt.Sprintf(
		"🔔 Comment awaiting review\n\n"+
			"%s %s\n"+
			"⚠️ %s (confidence %.2f)\n\n"+
			"📝 %s",
		comment.Avatar, comment.Author,
		comment.Reason, comment.Confidence,
		preview,
	)
}
