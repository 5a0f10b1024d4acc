package feedback

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/premium-ai-tgbot-go/internal/models"
	"github.com/premium-ai-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// Ledger records answer feedback keyed by user and question
// fingerprint, plus the simpler one-rating-per-user star ledger. Both
// are last-write-wins and persisted on every write.
type Ledger struct {
	mu       sync.Mutex
	feedback map[string]models.FeedbackRecord
	ratings  map[string]int

	store  *storage.Store
	logger *logrus.Logger
}

// NewLedger loads the persisted feedback and rating documents.
func NewLedger(store *storage.Store, logger *logrus.Logger) *Ledger {
	l := &Ledger{
		feedback: make(map[string]models.FeedbackRecord),
		ratings:  make(map[string]int),
		store:    store,
		logger:   logger,
	}

	store.Load(storage.DocUserFeedback, &l.feedback)
	store.Load(storage.DocUserRatings, &l.ratings)
	return l
}

// RecordFeedback upserts one approval/correction signal.
func (l *Ledger) RecordFeedback(userID int64, fingerprint string, isCorrect bool, reviewerID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := fmt.Sprintf("%d_%s", userID, fingerprint)
	l.feedback[id] = models.FeedbackRecord{
		IsCorrect:    isCorrect,
		FeedbackTime: time.Now(),
		FeedbackUser: reviewerID,
	}

	if err := l.store.Save(storage.DocUserFeedback, l.feedback); err != nil {
		l.logger.WithError(err).Error("Failed to save feedback")
	}
}

// Feedback looks up the record for one answered question.
func (l *Ledger) Feedback(userID int64, fingerprint string) (models.FeedbackRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.feedback[fmt.Sprintf("%d_%s", userID, fingerprint)]
	return rec, ok
}

// RecordRating stores a 1..5 star rating, one per user.
func (l *Ledger) RecordRating(userID int64, stars int) error {
	if stars < 1 || stars > 5 {
		return fmt.Errorf("rating out of range: %d", stars)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.ratings[strconv.FormatInt(userID, 10)] = stars
	if err := l.store.Save(storage.DocUserRatings, l.ratings); err != nil {
		l.logger.WithError(err).Error("Failed to save ratings")
	}
	return nil
}

// AverageRating returns the mean star rating rounded to two decimals,
// or zero when nobody has rated yet.
func (l *Ledger) AverageRating() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.ratings) == 0 {
		return 0
	}

	sum := 0
	for _, stars := range l.ratings {
		sum += stars
	}
	return math.Round(float64(sum)/float64(len(l.ratings))*100) / 100
}

// RatingCount returns how many users have rated.
func (l *Ledger) RatingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ratings)
}

// Distribution returns the count of ratings per star value 1..5.
func (l *Ledger) Distribution() map[int]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	dist := map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	for _, stars := range l.ratings {
		dist[stars]++
	}
	return dist
}

// ExportTrainingData rolls the accumulated feedback into a timestamped
// training document.
func (l *Ledger) ExportTrainingData() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data := models.TrainingData{}
	for key, record := range l.feedback {
		verdict := "incorrect"
		if record.IsCorrect {
			verdict = "correct"
		}
		data.Feedback = append(data.Feedback, fmt.Sprintf("%s:%s", key, verdict))
	}
	return l.store.SaveArchive("training_data", data)
}

// SaveAll flushes both ledgers, for the periodic bulk persistence loop.
func (l *Ledger) SaveAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Save(storage.DocUserFeedback, l.feedback); err != nil {
		l.logger.WithError(err).Error("Failed to save feedback")
	}
	if err := l.store.Save(storage.DocUserRatings, l.ratings); err != nil {
		l.logger.WithError(err).Error("Failed to save ratings")
	}
}
