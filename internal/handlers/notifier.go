package handlers

import (
	"context"
	"fmt"
	"net/url"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/premium-ai-tgbot-go/internal/i18n"
	"github.com/premium-ai-tgbot-go/internal/middleware"
	"github.com/premium-ai-tgbot-go/internal/services/ai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// TelegramNotifier delivers dispatch outcomes back through the bot
// API. The answer itself is held by the dispatcher and revealed only
// when the user taps the button.
type TelegramNotifier struct {
	bot       *tgbotapi.BotAPI
	localizer *i18n.Localizer
	pacer     *rate.Limiter
	logger    *logrus.Logger
}

// NewTelegramNotifier creates the notifier. Outbound sends are paced
// under the Telegram bot API's global message budget (~30/s).
func NewTelegramNotifier(bot *tgbotapi.BotAPI, localizer *i18n.Localizer, logger *logrus.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:       bot,
		localizer: localizer,
		pacer:     rate.NewLimiter(rate.Limit(25), 5),
		logger:    logger,
	}
}

// AnswerReady tells the user their answer is waiting behind a reveal
// button. Informational questions also get web search shortcuts.
func (n *TelegramNotifier) AnswerReady(chatID, userID int64, fingerprint, question string) {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData(
				n.localizer.Default(i18n.MsgShowAnswer, nil),
				fmt.Sprintf("show_answer_%d_%s", userID, fingerprint),
			),
		},
	}
	text := n.localizer.Default(i18n.MsgAnswerReady, nil)
	if middleware.ShouldOfferSearch(question) {
		rows = append(rows, searchShortcutRow(question))
		text += "\n\n" + n.localizer.Default(i18n.MsgSearchOffer, nil)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	n.send(msg)
}

// RateLimited tells the user the global request budget is exhausted.
func (n *TelegramNotifier) RateLimited(chatID int64) {
	n.send(tgbotapi.NewMessage(chatID, n.localizer.Default(i18n.MsgRateLimitExceeded, nil)))
}

// Failure tells the user what went wrong, by failure class.
func (n *TelegramNotifier) Failure(chatID int64, kind ai.FailureKind) {
	var messageID string
	switch kind {
	case ai.FailureConnection:
		messageID = i18n.MsgErrConnection
	case ai.FailureTimeout:
		messageID = i18n.MsgErrTimeout
	case ai.FailureBadPayload:
		messageID = i18n.MsgErrBadPayload
	default:
		messageID = i18n.MsgErrUnknown
	}
	n.send(tgbotapi.NewMessage(chatID, n.localizer.Default(messageID, nil)))
}

func (n *TelegramNotifier) send(msg tgbotapi.MessageConfig) {
	if err := n.pacer.Wait(context.Background()); err != nil {
		return
	}
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.WithError(err).WithField("chat_id", msg.ChatID).Error("Failed to send notification")
	}
}

// searchShortcutRow builds web search buttons for one question.
func searchShortcutRow(question string) []tgbotapi.InlineKeyboardButton {
	escaped := url.QueryEscape(question)
	return []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonURL("🔍 Google", "https://www.google.com/search?q="+escaped),
		tgbotapi.NewInlineKeyboardButtonURL("📖 Wikipedia", "https://ar.wikipedia.org/wiki/Special:Search?search="+escaped),
		tgbotapi.NewInlineKeyboardButtonURL("▶️ YouTube", "https://www.youtube.com/results?search_query="+escaped),
	}
}
