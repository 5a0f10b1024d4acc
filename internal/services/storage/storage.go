package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Document names used across the bot's persisted state.
const (
	DocUserContext         = "user_context"
	DocUserRatings         = "user_ratings"
	DocUserFeedback        = "user_feedback"
	DocUserCount           = "user_count"
	DocUserJoinDates       = "user_join_dates"
	DocFooterSettings      = "footer_settings"
	DocPendingActivations  = "pending_activations"
	DocMaintenanceMode     = "maintenance_mode"
	DocUserUsage           = "user_usage"
	DocBotStats            = "bot_stats"
	DocConversationHistory = "conversation_history"
	DocUserModels          = "user_models"
)

// Store persists JSON documents under a single directory. Writes go to
// a temporary sibling and are renamed over the target, so a document on
// disk is always either the previous or the new complete value.
type Store struct {
	dir         string
	trainingDir string
	logger      *logrus.Logger
}

// NewStore creates the data directories if needed.
func NewStore(dir, trainingDir string, logger *logrus.Logger) (*Store, error) {
	for _, d := range []string{dir, trainingDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", d, err)
		}
	}
	return &Store{dir: dir, trainingDir: trainingDir, logger: logger}, nil
}

// Load reads a document into v. A missing or malformed file is logged
// and leaves v untouched so the caller keeps its default; it is never
// surfaced as an error.
func (s *Store) Load(name string, v interface{}) {
	path := filepath.Join(s.dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("document", name).Warn("Failed to read document, using default")
		}
		return
	}

	if err := json.Unmarshal(data, v); err != nil {
		s.logger.WithError(err).WithField("document", name).Warn("Malformed document, using default")
	}
}

// Save atomically replaces a document.
func (s *Store) Save(name string, v interface{}) error {
	return s.writeAtomic(filepath.Join(s.dir, name+".json"), v)
}

// SaveArchive writes a timestamped document into the training directory.
// The prefix distinguishes training rollups from conversation archives.
func (s *Store) SaveArchive(prefix string, v interface{}) error {
	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(s.trainingDir, fmt.Sprintf("%s_%s.json", prefix, timestamp))
	return s.writeAtomic(path, v)
}

// TrainingDir returns the archive directory path.
func (s *Store) TrainingDir() string { return s.trainingDir }

func (s *Store) writeAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
