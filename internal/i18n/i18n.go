package i18n

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/premium-ai-tgbot-go/internal/config"
	"golang.org/x/text/language"
)

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.Arabic)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	dir := cfg.Directory
	if dir == "" {
		dir = "configs/i18n"
	}

	for _, lang := range cfg.Languages {
		if _, err := bundle.LoadMessageFile(filepath.Join(dir, fmt.Sprintf("%s.json", lang))); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// Default returns a message in the default language.
func (l *Localizer) Default(messageID string, data map[string]interface{}) string {
	return l.Get(l.defaultLanguage, messageID, data)
}

// Message IDs
const (
	MsgWelcome            = "welcome"
	MsgWelcomeBack        = "welcome_back"
	MsgHelp               = "help"
	MsgNotActivated       = "not_activated"
	MsgActivationPending  = "activation_pending"
	MsgActivationSent     = "activation_sent"
	MsgActivationApproved = "activation_approved"
	MsgActivationRejected = "activation_rejected"
	MsgActivationStale    = "activation_stale"
	MsgMaintenance        = "maintenance"
	MsgMaintenanceOn      = "maintenance_on"
	MsgMaintenanceOff     = "maintenance_off"
	MsgProcessing         = "processing"
	MsgAnswerReady        = "answer_ready"
	MsgShowAnswer         = "show_answer"
	MsgAnswerExpired      = "answer_expired"
	MsgQueueFull          = "queue_full"
	MsgRateLimitExceeded  = "rate_limit_exceeded"
	MsgErrConnection      = "error_connection"
	MsgErrTimeout         = "error_timeout"
	MsgErrBadPayload      = "error_bad_payload"
	MsgErrUnknown         = "error_unknown"
	MsgModelChanged       = "model_changed"
	MsgModelInvalid       = "model_invalid"
	MsgChooseModel        = "choose_model"
	MsgFeedbackCorrect    = "feedback_correct"
	MsgFeedbackIncorrect  = "feedback_incorrect"
	MsgFeedbackThanks     = "feedback_thanks"
	MsgRatePrompt         = "rate_prompt"
	MsgRateThanks         = "rate_thanks"
	MsgRateInvalid        = "rate_invalid"
	MsgStats              = "stats"
	MsgAdminOnly          = "admin_only"
	MsgFooterOn           = "footer_on"
	MsgFooterOff          = "footer_off"
	MsgUnknownCommand     = "unknown_command"
	MsgSearchOffer        = "search_offer"
	MsgAskStockSymbol     = "ask_stock_symbol"
	MsgAskProfileHandle   = "ask_profile_handle"
	MsgLookupFailed       = "lookup_failed"
	MsgMainMenu           = "main_menu"
	MsgFileNotSupported   = "file_not_supported"
)
