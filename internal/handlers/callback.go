package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/dispatch"
	"github.com/premium-ai-tgbot-go/internal/i18n"
	"github.com/premium-ai-tgbot-go/internal/services/access"
	"github.com/premium-ai-tgbot-go/internal/services/ai"
	"github.com/premium-ai-tgbot-go/internal/services/conversation"
	"github.com/premium-ai-tgbot-go/internal/services/feedback"
	"github.com/premium-ai-tgbot-go/pkg/markdown"
	"github.com/sirupsen/logrus"
)

// callbackAction is one parsed callback query.
type callbackAction struct {
	kind        string
	userID      int64
	fingerprint string
	modelKey    string
	stars       int
	isCorrect   bool
	approve     bool
}

// parseCallback splits a callback payload into a typed action. Unknown
// or malformed payloads return ok=false and are answered with a shrug
// rather than crashing the handler.
func parseCallback(data string) (callbackAction, bool) {
	switch {
	case strings.HasPrefix(data, "show_answer_"):
		userID, fingerprint, ok := splitUserFingerprint(strings.TrimPrefix(data, "show_answer_"))
		if !ok {
			return callbackAction{}, false
		}
		return callbackAction{kind: "show_answer", userID: userID, fingerprint: fingerprint}, true

	case strings.HasPrefix(data, "feedback_correct_"), strings.HasPrefix(data, "feedback_incorrect_"):
		isCorrect := strings.HasPrefix(data, "feedback_correct_")
		rest := strings.TrimPrefix(strings.TrimPrefix(data, "feedback_correct_"), "feedback_incorrect_")
		userID, fingerprint, ok := splitUserFingerprint(rest)
		if !ok {
			return callbackAction{}, false
		}
		return callbackAction{kind: "feedback", userID: userID, fingerprint: fingerprint, isCorrect: isCorrect}, true

	case strings.HasPrefix(data, "select_model_"):
		key := strings.TrimPrefix(data, "select_model_")
		if key == "" {
			return callbackAction{}, false
		}
		return callbackAction{kind: "select_model", modelKey: key}, true

	case strings.HasPrefix(data, "rate_"):
		stars, err := strconv.Atoi(strings.TrimPrefix(data, "rate_"))
		if err != nil {
			return callbackAction{}, false
		}
		return callbackAction{kind: "rate", stars: stars}, true

	case strings.HasPrefix(data, "activation_approve_"), strings.HasPrefix(data, "activation_reject_"):
		approve := strings.HasPrefix(data, "activation_approve_")
		rest := strings.TrimPrefix(strings.TrimPrefix(data, "activation_approve_"), "activation_reject_")
		userID, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return callbackAction{}, false
		}
		return callbackAction{kind: "activation", userID: userID, approve: approve}, true
	}
	return callbackAction{}, false
}

// splitUserFingerprint parses "<uid>_<fp>". The fingerprint is hex and
// never contains underscores, so the first separator splits cleanly.
func splitUserFingerprint(s string) (int64, string, bool) {
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return 0, "", false
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return userID, parts[1], true
}

// Telegram rejects messages past 4096 characters; long answers are
// sent in chunks.
const maxMessageLength = 4000

// splitMessage cuts text into rune-safe chunks of at most limit
// characters, breaking on newlines where possible.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// CallbackHandler handles inline keyboard callbacks
type CallbackHandler struct {
	config        *config.Config
	bot           *tgbotapi.BotAPI
	dispatcher    *dispatch.Dispatcher
	providers     *ai.Registry
	conversations *conversation.Manager
	accessReg     *access.Registry
	ledger        *feedback.Ledger
	localizer     *i18n.Localizer
	logger        *logrus.Logger
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(
	cfg *config.Config,
	bot *tgbotapi.BotAPI,
	dispatcher *dispatch.Dispatcher,
	providers *ai.Registry,
	conversations *conversation.Manager,
	accessReg *access.Registry,
	ledger *feedback.Ledger,
	localizer *i18n.Localizer,
	log *logrus.Logger,
) *CallbackHandler {
	return &CallbackHandler{
		config:        cfg,
		bot:           bot,
		dispatcher:    dispatcher,
		providers:     providers,
		conversations: conversations,
		accessReg:     accessReg,
		ledger:        ledger,
		localizer:     localizer,
		logger:        log,
	}
}

// HandleCallback processes inline keyboard callbacks
func (h *CallbackHandler) HandleCallback(ctx context.Context, update *tgbotapi.Update) error {
	query := update.CallbackQuery
	if query == nil || query.Message == nil {
		return nil
	}

	chatID := query.Message.Chat.ID
	fromID := query.From.ID

	action, ok := parseCallback(query.Data)
	if !ok {
		h.logger.WithField("data", query.Data).Warn("Malformed callback payload")
		return h.answer(query.ID, "")
	}

	switch action.kind {
	case "show_answer":
		return h.handleShowAnswer(query, chatID, fromID, action)
	case "feedback":
		return h.handleFeedback(query, fromID, action)
	case "select_model":
		return h.handleSelectModel(query, chatID, fromID, action.modelKey)
	case "rate":
		return h.handleRating(query, chatID, fromID, action.stars)
	case "activation":
		return h.handleActivation(query, chatID, fromID, action)
	}
	return h.answer(query.ID, "")
}

func (h *CallbackHandler) handleShowAnswer(query *tgbotapi.CallbackQuery, chatID, fromID int64, action callbackAction) error {
	// The reveal button belongs to the user who asked.
	if fromID != action.userID {
		return h.answer(query.ID, "")
	}

	answer, ok := h.dispatcher.Answer(action.userID, action.fingerprint)
	if !ok {
		return h.answer(query.ID, h.localizer.Default(i18n.MsgAnswerExpired, nil))
	}

	text := markdown.ToTelegramHTML(answer)
	if h.accessReg.FooterEnabled(action.userID) && h.config.Bot.FooterText != "" {
		text += "\n\n" + h.config.Bot.FooterText
	}

	chunks := splitMessage(text, maxMessageLength)
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		if i == len(chunks)-1 {
			msg.ReplyMarkup = feedbackKeyboard(action.userID, action.fingerprint, h.localizer)
		}
		if _, err := h.bot.Send(msg); err != nil {
			h.logger.WithError(err).Error("Failed to send revealed answer")
			// HTML conversion can trip Telegram's parser on odd
			// provider output. Retry the chunk as plain text.
			plain := tgbotapi.NewMessage(chatID, chunk)
			if i == len(chunks)-1 {
				plain.ReplyMarkup = feedbackKeyboard(action.userID, action.fingerprint, h.localizer)
			}
			if _, err := h.bot.Send(plain); err != nil {
				return err
			}
		}
	}
	return h.answer(query.ID, "")
}

func (h *CallbackHandler) handleFeedback(query *tgbotapi.CallbackQuery, fromID int64, action callbackAction) error {
	h.ledger.RecordFeedback(action.userID, action.fingerprint, action.isCorrect, fromID)
	return h.answer(query.ID, h.localizer.Default(i18n.MsgFeedbackThanks, nil))
}

func (h *CallbackHandler) handleSelectModel(query *tgbotapi.CallbackQuery, chatID, fromID int64, modelKey string) error {
	if !h.providers.Known(modelKey) {
		h.logger.WithField("model", modelKey).Warn("Unknown model key in callback")
		return h.answer(query.ID, h.localizer.Default(i18n.MsgModelInvalid, nil))
	}

	h.conversations.SetModel(fromID, modelKey)
	provider := h.providers.Get(modelKey)
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, h.localizer.Default(i18n.MsgModelChanged, map[string]interface{}{
		"Model": provider.DisplayName,
	}))); err != nil {
		return err
	}
	return h.answer(query.ID, "")
}

func (h *CallbackHandler) handleRating(query *tgbotapi.CallbackQuery, chatID, fromID int64, stars int) error {
	if err := h.ledger.RecordRating(fromID, stars); err != nil {
		return h.answer(query.ID, h.localizer.Default(i18n.MsgRateInvalid, nil))
	}
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, h.localizer.Default(i18n.MsgRateThanks, map[string]interface{}{
		"Stars": stars,
	}))); err != nil {
		return err
	}
	return h.answer(query.ID, "")
}

func (h *CallbackHandler) handleActivation(query *tgbotapi.CallbackQuery, chatID, fromID int64, action callbackAction) error {
	if !h.accessReg.IsAdmin(fromID) {
		return h.answer(query.ID, h.localizer.Default(i18n.MsgAdminOnly, nil))
	}

	request, ok := h.accessReg.ResolveActivation(strconv.FormatInt(action.userID, 10))
	if !ok {
		return h.answer(query.ID, h.localizer.Default(i18n.MsgActivationStale, nil))
	}

	if action.approve {
		h.accessReg.RegisterUser(action.userID)
		h.conversations.Register(action.userID)

		welcome := tgbotapi.NewMessage(action.userID, h.localizer.Default(i18n.MsgActivationApproved, nil))
		welcome.ReplyMarkup = MainMenuKeyboard()
		if _, err := h.bot.Send(welcome); err != nil {
			h.logger.WithError(err).WithField("user_id", action.userID).Error("Failed to notify approved user")
		}
		h.logger.WithFields(logrus.Fields{
			"user_id": action.userID,
			"admin":   fromID,
			"name":    request.Name,
		}).Info("Activation approved")
		return h.confirmToAdmin(query, chatID, fmt.Sprintf("✅ تم تفعيل %s", request.Name))
	}

	if _, err := h.bot.Send(tgbotapi.NewMessage(action.userID, h.localizer.Default(i18n.MsgActivationRejected, nil))); err != nil {
		h.logger.WithError(err).WithField("user_id", action.userID).Error("Failed to notify rejected user")
	}
	return h.confirmToAdmin(query, chatID, fmt.Sprintf("❌ تم رفض %s", request.Name))
}

func (h *CallbackHandler) confirmToAdmin(query *tgbotapi.CallbackQuery, chatID int64, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, query.Message.MessageID, text)
	if _, err := h.bot.Send(edit); err != nil {
		h.logger.WithError(err).Error("Failed to edit activation message")
	}
	return h.answer(query.ID, "")
}

func (h *CallbackHandler) answer(queryID, text string) error {
	_, err := h.bot.Request(tgbotapi.NewCallback(queryID, text))
	return err
}

func feedbackKeyboard(userID int64, fingerprint string, localizer *i18n.Localizer) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				localizer.Default(i18n.MsgFeedbackCorrect, nil),
				fmt.Sprintf("feedback_correct_%d_%s", userID, fingerprint),
			),
			tgbotapi.NewInlineKeyboardButtonData(
				localizer.Default(i18n.MsgFeedbackIncorrect, nil),
				fmt.Sprintf("feedback_incorrect_%d_%s", userID, fingerprint),
			),
		),
	)
}
