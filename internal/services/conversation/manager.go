package conversation

import (
	"strconv"
	"sync"
	"time"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/models"
	"github.com/premium-ai-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// Manager owns the bounded per-user conversation contexts, the per-user
// model preferences and the training history. The dispatch worker and
// the callback path both mutate it, so all state sits behind one mutex.
type Manager struct {
	mu       sync.Mutex
	contexts map[string][]models.Message
	prefs    map[string]string
	history  map[string][]models.ConversationRecord

	maxMessages      int
	archiveThreshold int
	defaultModel     string

	store  *storage.Store
	logger *logrus.Logger
}

// NewManager loads the persisted context, preference and history documents.
func NewManager(cfg *config.Config, store *storage.Store, logger *logrus.Logger) *Manager {
	m := &Manager{
		contexts:         make(map[string][]models.Message),
		prefs:            make(map[string]string),
		history:          make(map[string][]models.ConversationRecord),
		maxMessages:      cfg.Context.MaxMessages,
		archiveThreshold: cfg.Context.ArchiveThreshold,
		defaultModel:     cfg.Providers.Default,
		store:            store,
		logger:           logger,
	}

	store.Load(storage.DocUserContext, &m.contexts)
	store.Load(storage.DocUserModels, &m.prefs)
	store.Load(storage.DocConversationHistory, &m.history)

	logger.WithField("users", len(m.contexts)).Info("Conversation contexts loaded")
	return m
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// IsRegistered reports whether the user has a context record, which is
// what marks an activated account.
func (m *Manager) IsRegistered(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.contexts[key(userID)]
	return ok
}

// Register creates an empty context for a newly activated user. An
// existing context is left untouched.
func (m *Manager) Register(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := key(userID)
	if _, ok := m.contexts[id]; !ok {
		m.contexts[id] = []models.Message{}
	}
	if _, ok := m.prefs[id]; !ok {
		m.prefs[id] = m.defaultModel
	}
	m.persistContextsLocked()
	m.persistPrefsLocked()
}

// AppendUserTurn appends a user message, trimming the window first so
// the context never exceeds the configured bound. Loss is FIFO: the
// oldest turns are dropped, order is never changed.
func (m *Manager) AppendUserTurn(userID int64, text string) {
	m.appendTurn(userID, models.Message{Role: "user", Content: text})
}

// AppendAssistantTurn appends an assistant message under the same window.
func (m *Manager) AppendAssistantTurn(userID int64, text string) {
	m.appendTurn(userID, models.Message{Role: "assistant", Content: text})
}

func (m *Manager) appendTurn(userID int64, msg models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := key(userID)
	ctx := m.contexts[id]
	if len(ctx) >= m.maxMessages {
		ctx = append([]models.Message{}, ctx[len(ctx)-m.maxMessages+1:]...)
	}
	m.contexts[id] = append(ctx, msg)
	m.persistContextsLocked()
}

// Messages returns a copy of the user's current context.
func (m *Manager) Messages(userID int64) []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := m.contexts[key(userID)]
	out := make([]models.Message, len(ctx))
	copy(out, ctx)
	return out
}

// ModelFor returns the user's stored model preference; the registry
// maps unknown values to the default provider on lookup.
func (m *Manager) ModelFor(userID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pref, ok := m.prefs[key(userID)]; ok {
		return pref
	}
	return m.defaultModel
}

// SetModel stores an explicit model selection and persists it.
func (m *Manager) SetModel(userID int64, modelKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prefs[key(userID)] = modelKey
	m.persistPrefsLocked()
}

// ModelDistribution counts preferences per model key for admin reports.
func (m *Manager) ModelDistribution() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dist := make(map[string]int)
	for _, modelKey := range m.prefs {
		dist[modelKey]++
	}
	return dist
}

// RecordConversation appends one training-history record. When a user's
// history grows past the archive threshold it is written to a
// timestamped archive document and the in-memory list resets.
func (m *Manager) RecordConversation(userID int64, message string, isUser bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := key(userID)
	m.history[id] = append(m.history[id], models.ConversationRecord{
		Message:   message,
		IsUser:    isUser,
		Timestamp: time.Now(),
	})

	if len(m.history[id]) > m.archiveThreshold {
		archive := models.ConversationArchive{UserID: id, Conversation: m.history[id]}
		if err := m.store.SaveArchive("conversation_"+id, archive); err != nil {
			m.logger.WithError(err).WithField("user_id", id).Error("Failed to archive conversation history")
		} else {
			m.history[id] = nil
		}
	}
	m.persistHistoryLocked()
}

// SaveAll flushes every document this manager owns, for the periodic
// bulk persistence loop.
func (m *Manager) SaveAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.persistContextsLocked()
	m.persistPrefsLocked()
	m.persistHistoryLocked()
}

func (m *Manager) persistContextsLocked() {
	if err := m.store.Save(storage.DocUserContext, m.contexts); err != nil {
		m.logger.WithError(err).Error("Failed to save user contexts")
	}
}

func (m *Manager) persistPrefsLocked() {
	if err := m.store.Save(storage.DocUserModels, m.prefs); err != nil {
		m.logger.WithError(err).Error("Failed to save user models")
	}
}

func (m *Manager) persistHistoryLocked() {
	if err := m.store.Save(storage.DocConversationHistory, m.history); err != nil {
		m.logger.WithError(err).Error("Failed to save conversation history")
	}
}
