package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/dispatch"
	"github.com/premium-ai-tgbot-go/internal/i18n"
	"github.com/premium-ai-tgbot-go/internal/services/access"
	"github.com/premium-ai-tgbot-go/internal/services/ai"
	"github.com/premium-ai-tgbot-go/internal/services/conversation"
	"github.com/premium-ai-tgbot-go/internal/services/markets"
	"github.com/premium-ai-tgbot-go/internal/services/session"
	"github.com/premium-ai-tgbot-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Main menu button labels. The reply keyboard sends these back as
// plain text, so the handler matches on them before treating input as
// a question.
const (
	btnAsk     = "💬 اسأل الذكاء الاصطناعي"
	btnStocks  = "📊 أسعار الأسهم"
	btnProfile = "👤 بحث ملف مهني"
	btnModel   = "🤖 اختيار النموذج"
	btnRate    = "⭐ قيّم البوت"
	btnMyStats = "📈 إحصائياتي"
	btnFooter  = "⚙️ التذييل"
	btnHelp    = "ℹ️ مساعدة"
)

// Pending free-text input states.
const (
	awaitingNothing = iota
	awaitingStockSymbol
	awaitingProfileHandle
)

// MessageHandler handles regular messages
type MessageHandler struct {
	config        *config.Config
	bot           *tgbotapi.BotAPI
	dispatcher    *dispatch.Dispatcher
	providers     *ai.Registry
	conversations *conversation.Manager
	accessReg     *access.Registry
	sessions      *session.Tracker
	markets       *markets.Client
	localizer     *i18n.Localizer
	logger        *logrus.Logger

	mu       sync.Mutex
	awaiting map[int64]int
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(
	cfg *config.Config,
	bot *tgbotapi.BotAPI,
	dispatcher *dispatch.Dispatcher,
	providers *ai.Registry,
	conversations *conversation.Manager,
	accessReg *access.Registry,
	sessions *session.Tracker,
	marketsClient *markets.Client,
	localizer *i18n.Localizer,
	log *logrus.Logger,
) *MessageHandler {
	return &MessageHandler{
		config:        cfg,
		bot:           bot,
		dispatcher:    dispatcher,
		providers:     providers,
		conversations: conversations,
		accessReg:     accessReg,
		sessions:      sessions,
		markets:       marketsClient,
		localizer:     localizer,
		logger:        log,
		awaiting:      make(map[int64]int),
	}
}

// HandleMessage processes regular messages
func (h *MessageHandler) HandleMessage(ctx context.Context, update *tgbotapi.Update) error {
	if update.Message == nil || update.Message.IsCommand() {
		return nil
	}
	if update.Message.From == nil || update.Message.From.ID == h.bot.Self.ID {
		return nil
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		if hasAttachment(update.Message) {
			return h.reply(chatID, h.localizer.Default(i18n.MsgFileNotSupported, nil))
		}
		return nil
	}

	h.sessions.Touch(userID)

	if h.accessReg.Maintenance() && !h.accessReg.IsAdmin(userID) {
		return h.reply(chatID, h.localizer.Default(i18n.MsgMaintenance, nil))
	}

	if !h.allowed(userID) {
		return h.reply(chatID, h.localizer.Default(i18n.MsgNotActivated, nil))
	}

	switch h.pendingInput(userID) {
	case awaitingStockSymbol:
		h.setPendingInput(userID, awaitingNothing)
		return h.handleStockLookup(ctx, chatID, userID, text)
	case awaitingProfileHandle:
		h.setPendingInput(userID, awaitingNothing)
		return h.handleProfileLookup(ctx, chatID, userID, text)
	}

	switch text {
	case btnAsk:
		return h.reply(chatID, h.localizer.Default(i18n.MsgMainMenu, nil))
	case btnStocks:
		h.setPendingInput(userID, awaitingStockSymbol)
		return h.reply(chatID, h.localizer.Default(i18n.MsgAskStockSymbol, nil))
	case btnProfile:
		h.setPendingInput(userID, awaitingProfileHandle)
		return h.reply(chatID, h.localizer.Default(i18n.MsgAskProfileHandle, nil))
	case btnModel:
		return h.sendModelKeyboard(chatID, userID)
	case btnRate:
		return h.sendRatingKeyboard(chatID)
	case btnMyStats:
		return h.sendUserStats(chatID, userID)
	case btnFooter:
		return h.toggleFooter(chatID, userID)
	case btnHelp:
		return h.reply(chatID, h.localizer.Default(i18n.MsgHelp, nil))
	}

	return h.enqueueQuestion(chatID, userID, text)
}

// allowed reports whether the sender may use the bot. Admins bypass
// the activation flow.
func (h *MessageHandler) allowed(userID int64) bool {
	return h.conversations.IsRegistered(userID) || h.accessReg.IsAdmin(userID)
}

// hasAttachment reports whether a text-less message carried a file or
// photo the bot cannot analyze.
func hasAttachment(msg *tgbotapi.Message) bool {
	return msg.Document != nil || len(msg.Photo) > 0
}

// enqueueQuestion hands the question to the dispatcher and confirms
// receipt.
func (h *MessageHandler) enqueueQuestion(chatID, userID int64, question string) error {
	req := dispatch.Request{
		UserID:      userID,
		ChatID:      chatID,
		Question:    question,
		Fingerprint: dispatch.Fingerprint(question),
	}
	if err := h.dispatcher.Enqueue(req); err != nil {
		logger.WithUser(h.logger, chatID, userID).WithError(err).Warn("Question rejected")
		return h.reply(chatID, h.localizer.Default(i18n.MsgQueueFull, nil))
	}
	return h.reply(chatID, h.localizer.Default(i18n.MsgProcessing, nil))
}

func (h *MessageHandler) handleStockLookup(ctx context.Context, chatID, userID int64, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	logger.WithUser(h.logger, chatID, userID).WithField("symbol", symbol).Info("Stock lookup requested")

	snapshot := h.markets.QuoteSnapshot(ctx, symbol)
	if snapshot == nil {
		return h.reply(chatID, h.localizer.Default(i18n.MsgLookupFailed, nil))
	}

	summary := formatStockSummary(
		snapshot,
		h.markets.Insights(ctx, symbol),
		h.markets.InsiderHolders(ctx, symbol),
		h.markets.AnalystReports(ctx, symbol),
		h.markets.Filings(ctx, symbol),
	)
	return h.reply(chatID, summary)
}

// formatStockSummary renders the stock card. Sections whose lookup
// came back empty are omitted.
func formatStockSummary(
	snapshot *markets.QuoteSnapshot,
	insights *markets.Insights,
	holders []markets.InsiderHolder,
	reports []markets.AnalystReport,
	filings []markets.Filing,
) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 %s\n", snapshot.Symbol)
	fmt.Fprintf(&sb, "السعر الحالي: %.2f %s\n", snapshot.RegularMarketPrice, snapshot.Currency)
	fmt.Fprintf(&sb, "الإغلاق السابق: %.2f\n", snapshot.ChartPreviousClose)
	if snapshot.RegularMarketDayLow > 0 || snapshot.RegularMarketDayHigh > 0 {
		fmt.Fprintf(&sb, "مدى اليوم: %.2f - %.2f\n", snapshot.RegularMarketDayLow, snapshot.RegularMarketDayHigh)
	}

	if insights != nil {
		if insights.ShortTermOutlook != "" {
			fmt.Fprintf(&sb, "\nالتوقع قصير المدى: %s\n", insights.ShortTermOutlook)
		}
		if insights.Recommendation != "" {
			fmt.Fprintf(&sb, "التوصية: %s\n", insights.Recommendation)
		}
	}

	if len(holders) > 0 {
		fmt.Fprintf(&sb, "\n👥 المطلعون المسجلون: %d\n", len(holders))
		for i, holder := range holders {
			if i == 3 {
				break
			}
			fmt.Fprintf(&sb, "• %s - %s\n", holder.Name, holder.Relation)
		}
	}

	if len(reports) > 0 {
		sb.WriteString("\n📑 آخر تقارير المحللين:\n")
		for i, report := range reports {
			if i == 3 {
				break
			}
			fmt.Fprintf(&sb, "• %s (%s)\n", report.Title, report.Provider)
		}
	}

	if len(filings) > 0 {
		sb.WriteString("\n📄 آخر الإفصاحات التنظيمية:\n")
		for i, filing := range filings {
			if i == 2 {
				break
			}
			fmt.Fprintf(&sb, "• %s (%s)\n", filing.Title, filing.Date)
		}
	}

	return sb.String()
}

func (h *MessageHandler) handleProfileLookup(ctx context.Context, chatID, userID int64, handle string) error {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	logger.WithUser(h.logger, chatID, userID).WithField("handle", handle).Info("Profile lookup requested")

	profile := h.markets.ProfileByHandle(ctx, handle)
	if profile == nil {
		return h.reply(chatID, h.localizer.Default(i18n.MsgLookupFailed, nil))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 %s\n", profile.FullName)
	if profile.Headline != "" {
		fmt.Fprintf(&sb, "%s\n", profile.Headline)
	}
	if profile.Company != "" {
		fmt.Fprintf(&sb, "🏢 %s\n", profile.Company)
	}
	if profile.Location != "" {
		fmt.Fprintf(&sb, "📍 %s\n", profile.Location)
	}
	if profile.Summary != "" {
		fmt.Fprintf(&sb, "\n%s\n", profile.Summary)
	}
	return h.reply(chatID, sb.String())
}

func (h *MessageHandler) sendUserStats(chatID, userID int64) error {
	usage := h.accessReg.Usage(userID)
	model := h.providers.Get(h.conversations.ModelFor(userID))

	var sb strings.Builder
	sb.WriteString("📈 إحصائياتك\n\n")
	fmt.Fprintf(&sb, "عدد الأسئلة: %d\n", usage.Count)
	if usage.LastUsed != nil {
		fmt.Fprintf(&sb, "آخر استخدام: %s\n", usage.LastUsed.Format("2006-01-02 15:04"))
	}
	if joined, ok := h.accessReg.JoinDate(userID); ok {
		fmt.Fprintf(&sb, "تاريخ الانضمام: %s\n", joined.Format("2006-01-02"))
	}
	fmt.Fprintf(&sb, "النموذج الحالي: %s\n", model.DisplayName)
	return h.reply(chatID, sb.String())
}

func (h *MessageHandler) toggleFooter(chatID, userID int64) error {
	enabled := !h.accessReg.FooterEnabled(userID)
	h.accessReg.SetFooter(userID, enabled)
	if enabled {
		return h.reply(chatID, h.localizer.Default(i18n.MsgFooterOn, nil))
	}
	return h.reply(chatID, h.localizer.Default(i18n.MsgFooterOff, nil))
}

func (h *MessageHandler) sendModelKeyboard(chatID, userID int64) error {
	msg := tgbotapi.NewMessage(chatID, h.localizer.Default(i18n.MsgChooseModel, map[string]interface{}{
		"Model": h.conversations.ModelFor(userID),
	}))
	msg.ReplyMarkup = modelKeyboard(h.providers)
	_, err := h.bot.Send(msg)
	return err
}

func (h *MessageHandler) sendRatingKeyboard(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, h.localizer.Default(i18n.MsgRatePrompt, nil))
	msg.ReplyMarkup = ratingKeyboard()
	_, err := h.bot.Send(msg)
	return err
}

func (h *MessageHandler) pendingInput(userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.awaiting[userID]
}

func (h *MessageHandler) setPendingInput(userID int64, state int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if state == awaitingNothing {
		delete(h.awaiting, userID)
		return
	}
	h.awaiting[userID] = state
}

func (h *MessageHandler) reply(chatID int64, text string) error {
	_, err := h.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// MainMenuKeyboard is the persistent reply keyboard shown after /start.
func MainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnAsk),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStocks),
			tgbotapi.NewKeyboardButton(btnProfile),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnModel),
			tgbotapi.NewKeyboardButton(btnRate),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnMyStats),
			tgbotapi.NewKeyboardButton(btnFooter),
			tgbotapi.NewKeyboardButton(btnHelp),
		),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

func ratingKeyboard() tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 5)
	for stars := 1; stars <= 5; stars++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			strings.Repeat("⭐", stars),
			fmt.Sprintf("rate_%d", stars),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func modelKeyboard(providers *ai.Registry) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0)
	for _, provider := range providers.All() {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(provider.DisplayName, "select_model_"+provider.Key),
		})
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
