package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/dispatch"
	"github.com/premium-ai-tgbot-go/internal/i18n"
	"github.com/premium-ai-tgbot-go/internal/models"
	"github.com/premium-ai-tgbot-go/internal/services/access"
	"github.com/premium-ai-tgbot-go/internal/services/ai"
	"github.com/premium-ai-tgbot-go/internal/services/conversation"
	"github.com/premium-ai-tgbot-go/internal/services/feedback"
	"github.com/premium-ai-tgbot-go/internal/services/session"
	"github.com/sirupsen/logrus"
)

// CommandHandler handles bot commands
type CommandHandler struct {
	config        *config.Config
	bot           *tgbotapi.BotAPI
	dispatcher    *dispatch.Dispatcher
	providers     *ai.Registry
	conversations *conversation.Manager
	accessReg     *access.Registry
	ledger        *feedback.Ledger
	sessions      *session.Tracker
	localizer     *i18n.Localizer
	logger        *logrus.Logger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(
	cfg *config.Config,
	bot *tgbotapi.BotAPI,
	dispatcher *dispatch.Dispatcher,
	providers *ai.Registry,
	conversations *conversation.Manager,
	accessReg *access.Registry,
	ledger *feedback.Ledger,
	sessions *session.Tracker,
	localizer *i18n.Localizer,
	log *logrus.Logger,
) *CommandHandler {
	return &CommandHandler{
		config:        cfg,
		bot:           bot,
		dispatcher:    dispatcher,
		providers:     providers,
		conversations: conversations,
		accessReg:     accessReg,
		ledger:        ledger,
		sessions:      sessions,
		localizer:     localizer,
		logger:        log,
	}
}

// HandleCommand processes bot commands
func (h *CommandHandler) HandleCommand(ctx context.Context, update *tgbotapi.Update) error {
	if update.Message == nil || !update.Message.IsCommand() {
		return nil
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	h.sessions.Touch(userID)

	switch update.Message.Command() {
	case "start":
		return h.handleStart(update)
	case "cancel":
		return h.handleCancel(chatID, userID)
	case "help":
		return h.reply(chatID, h.localizer.Default(i18n.MsgHelp, nil))
	case "model":
		return h.handleModel(chatID, userID)
	case "rate":
		return h.handleRate(chatID)
	case "stats":
		return h.handleStats(chatID, userID)
	case "pending":
		return h.handlePending(chatID, userID)
	case "maintenance":
		return h.handleMaintenance(chatID, userID, update.Message.CommandArguments())
	case "footer":
		return h.handleFooter(chatID, userID, update.Message.CommandArguments())
	default:
		return h.reply(chatID, h.localizer.Default(i18n.MsgUnknownCommand, nil))
	}
}

// handleStart activates returning users and routes newcomers through
// admin approval.
func (h *CommandHandler) handleStart(update *tgbotapi.Update) error {
	chatID := update.Message.Chat.ID
	from := update.Message.From

	if h.conversations.IsRegistered(from.ID) {
		msg := tgbotapi.NewMessage(chatID, h.localizer.Default(i18n.MsgWelcomeBack, map[string]interface{}{
			"Name": from.FirstName,
		}))
		msg.ReplyMarkup = MainMenuKeyboard()
		_, err := h.bot.Send(msg)
		return err
	}

	// Admins skip the approval flow and are registered on first contact.
	if h.accessReg.IsAdmin(from.ID) {
		h.accessReg.RegisterUser(from.ID)
		h.conversations.Register(from.ID)
		msg := tgbotapi.NewMessage(chatID, h.localizer.Default(i18n.MsgWelcome, map[string]interface{}{
			"Name": from.FirstName,
		}))
		msg.ReplyMarkup = MainMenuKeyboard()
		_, err := h.bot.Send(msg)
		return err
	}

	request := models.PendingActivation{
		Name:        strings.TrimSpace(from.FirstName + " " + from.LastName),
		Username:    from.UserName,
		RequestedAt: time.Now(),
		UserInfo: models.UserInfo{
			ID:           from.ID,
			FirstName:    from.FirstName,
			LastName:     from.LastName,
			LanguageCode: from.LanguageCode,
		},
	}

	if !h.accessReg.RequestActivation(from.ID, request) {
		return h.reply(chatID, h.localizer.Default(i18n.MsgActivationPending, nil))
	}

	h.notifyAdminsOfRequest(from.ID, request)
	return h.reply(chatID, h.localizer.Default(i18n.MsgActivationSent, nil))
}

// handleCancel withdraws the caller's pending activation request.
func (h *CommandHandler) handleCancel(chatID, userID int64) error {
	if !h.accessReg.CancelActivation(userID) {
		return h.reply(chatID, h.localizer.Default(i18n.MsgActivationStale, nil))
	}
	return h.reply(chatID, "تم إلغاء طلب التفعيل.")
}

func (h *CommandHandler) notifyAdminsOfRequest(userID int64, request models.PendingActivation) {
	text := fmt.Sprintf("🔔 طلب تفعيل جديد\nالاسم: %s\nالمعرف: @%s\nالرقم: %d",
		request.Name, request.Username, userID)
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ موافقة", fmt.Sprintf("activation_approve_%d", userID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ رفض", fmt.Sprintf("activation_reject_%d", userID)),
		),
	)

	for _, adminID := range h.config.Bot.AdminIDs {
		msg := tgbotapi.NewMessage(adminID, text)
		msg.ReplyMarkup = keyboard
		if _, err := h.bot.Send(msg); err != nil {
			h.logger.WithError(err).WithField("admin_id", adminID).Error("Failed to notify admin")
		}
	}
}

func (h *CommandHandler) handleModel(chatID, userID int64) error {
	msg := tgbotapi.NewMessage(chatID, h.localizer.Default(i18n.MsgChooseModel, map[string]interface{}{
		"Model": h.conversations.ModelFor(userID),
	}))
	msg.ReplyMarkup = modelKeyboard(h.providers)
	_, err := h.bot.Send(msg)
	return err
}

func (h *CommandHandler) handleRate(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, h.localizer.Default(i18n.MsgRatePrompt, nil))
	msg.ReplyMarkup = ratingKeyboard()
	_, err := h.bot.Send(msg)
	return err
}

func (h *CommandHandler) handleStats(chatID, userID int64) error {
	if !h.accessReg.IsAdmin(userID) {
		return h.reply(chatID, h.localizer.Default(i18n.MsgAdminOnly, nil))
	}

	stats := h.accessReg.Stats()
	var sb strings.Builder
	sb.WriteString(h.localizer.Default(i18n.MsgStats, nil) + "\n\n")
	fmt.Fprintf(&sb, "إجمالي المستخدمين: %d\n", h.accessReg.UserCount())
	fmt.Fprintf(&sb, "مستخدمون جدد اليوم: %d\n", h.accessReg.NewUsersToday())
	fmt.Fprintf(&sb, "المستخدمون النشطون: %d\n", stats.ActiveUsers)
	fmt.Fprintf(&sb, "الجلسات الحالية: %d\n", h.sessions.ActiveCount())
	fmt.Fprintf(&sb, "إجمالي الطلبات: %d\n", stats.TotalRequests)
	fmt.Fprintf(&sb, "الطلبات الناجحة: %d\n", stats.SuccessfulRequests)
	fmt.Fprintf(&sb, "الطلبات الفاشلة: %d\n", stats.FailedRequests)
	fmt.Fprintf(&sb, "الطلبات في الانتظار: %d\n", h.dispatcher.QueueDepth())
	fmt.Fprintf(&sb, "متوسط التقييم: %.2f (%d تقييم)\n", h.ledger.AverageRating(), h.ledger.RatingCount())

	if dist := h.conversations.ModelDistribution(); len(dist) > 0 {
		sb.WriteString("\nتوزيع النماذج:\n")
		for _, provider := range h.providers.All() {
			if count, ok := dist[provider.Key]; ok {
				fmt.Fprintf(&sb, "• %s: %d\n", provider.DisplayName, count)
			}
		}
	}

	return h.reply(chatID, sb.String())
}

func (h *CommandHandler) handlePending(chatID, userID int64) error {
	if !h.accessReg.IsAdmin(userID) {
		return h.reply(chatID, h.localizer.Default(i18n.MsgAdminOnly, nil))
	}

	pending := h.accessReg.PendingActivations()
	if len(pending) == 0 {
		return h.reply(chatID, "لا توجد طلبات تفعيل معلقة.")
	}

	for id, request := range pending {
		text := fmt.Sprintf("طلب معلق\nالاسم: %s\nالمعرف: @%s\nالرقم: %s",
			request.Name, request.Username, id)
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ موافقة", "activation_approve_"+id),
				tgbotapi.NewInlineKeyboardButtonData("❌ رفض", "activation_reject_"+id),
			),
		)
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ReplyMarkup = keyboard
		if _, err := h.bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (h *CommandHandler) handleMaintenance(chatID, userID int64, args string) error {
	if !h.accessReg.IsAdmin(userID) {
		return h.reply(chatID, h.localizer.Default(i18n.MsgAdminOnly, nil))
	}

	switch strings.TrimSpace(args) {
	case "on":
		h.accessReg.SetMaintenance(true)
		return h.reply(chatID, h.localizer.Default(i18n.MsgMaintenanceOn, nil))
	case "off":
		h.accessReg.SetMaintenance(false)
		return h.reply(chatID, h.localizer.Default(i18n.MsgMaintenanceOff, nil))
	default:
		state := "off"
		if h.accessReg.Maintenance() {
			state = "on"
		}
		return h.reply(chatID, fmt.Sprintf("وضع الصيانة: %s", state))
	}
}

func (h *CommandHandler) handleFooter(chatID, userID int64, args string) error {
	switch strings.TrimSpace(args) {
	case "on":
		h.accessReg.SetFooter(userID, true)
		return h.reply(chatID, h.localizer.Default(i18n.MsgFooterOn, nil))
	case "off":
		h.accessReg.SetFooter(userID, false)
		return h.reply(chatID, h.localizer.Default(i18n.MsgFooterOff, nil))
	default:
		state := "off"
		if h.accessReg.FooterEnabled(userID) {
			state = "on"
		}
		return h.reply(chatID, fmt.Sprintf("التذييل: %s", state))
	}
}

func (h *CommandHandler) reply(chatID int64, text string) error {
	_, err := h.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
