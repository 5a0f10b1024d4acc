package ai

import (
	"context"
	"fmt"

	"github.com/premium-ai-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// manusAdapter stands in for the internal Manus system, which has no
// public endpoint. It acknowledges the last message locally.
type manusAdapter struct {
	logger *logrus.Logger
}

func newManusAdapter(logger *logrus.Logger) *manusAdapter {
	return &manusAdapter{logger: logger}
}

func (a *manusAdapter) Respond(ctx context.Context, messages []models.Message) (string, error) {
	a.logger.Info("Manus model selected, returning placeholder response")

	last := lastUserContent(messages)
	return fmt.Sprintf(
		"🤖 (Manus) تم استلام رسالتك: '%s'. أنا نموذج Manus، قيد التطوير حاليًا للاستخدام الداخلي. قد لا أتمكن من الرد على جميع الاستفسارات في الوقت الحالي.",
		last,
	), nil
}
