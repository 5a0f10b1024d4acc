package models

import (
	"time"
)

// Message represents a single conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserUsage tracks how often a user has issued accepted requests.
type UserUsage struct {
	Count    int        `json:"count"`
	LastUsed *time.Time `json:"last_used"`
}

// BotStats is the aggregate request accounting document.
type BotStats struct {
	TotalRequests      int       `json:"total_requests"`
	SuccessfulRequests int       `json:"successful_requests"`
	FailedRequests     int       `json:"failed_requests"`
	ActiveUsers        int       `json:"active_users"`
	LastUpdated        time.Time `json:"last_updated"`
}

// PendingActivation is a not-yet-approved access request.
// At most one per user ID exists at a time.
type PendingActivation struct {
	Name        string    `json:"name"`
	Username    string    `json:"username"`
	RequestedAt time.Time `json:"time"`
	UserInfo    UserInfo  `json:"user_info"`
}

// UserInfo is the raw profile snapshot captured with an activation request.
type UserInfo struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	LanguageCode string `json:"language_code"`
}

// FeedbackRecord stores one approval/correction signal, keyed externally
// by user ID and question fingerprint. Last write wins.
type FeedbackRecord struct {
	IsCorrect    bool      `json:"is_correct"`
	FeedbackTime time.Time `json:"feedback_time"`
	FeedbackUser int64     `json:"feedback_user"`
}

// ConversationRecord is one turn of a user's training history.
type ConversationRecord struct {
	Message   string    `json:"message"`
	IsUser    bool      `json:"is_user"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationArchive is the timestamped rollup document for one user.
type ConversationArchive struct {
	UserID       string               `json:"user_id"`
	Conversation []ConversationRecord `json:"conversation"`
}

// TrainingData accumulates material for the daily rollup.
type TrainingData struct {
	Questions   []string `json:"questions"`
	Responses   []string `json:"responses"`
	Corrections []string `json:"corrections"`
	Feedback    []string `json:"feedback"`
}
