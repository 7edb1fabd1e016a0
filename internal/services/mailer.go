package services

import (
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/pkg/logger"
)

// Mailer is the narrow surface the core needs from mail delivery.
// Sends are fire-and-forget; nothing in the request path waits on
// them.
type Mailer interface {
	SendConfirmation(user *models.User, registrationKey string)
}

// LogMailer records outgoing confirmation mails instead of delivering
// them. Real delivery lives behind the same interface out of tree.
type LogMailer struct {
	Sender string
}

func NewLogMailer(sender string) *LogMailer {
	return &LogMailer{Sender: sender}
}

func (m *LogMailer) SendConfirmation(user *models.User, registrationKey string) {
	go func() {
		logger.Info("confirmation_mail_queued", map[string]interface{}{
			"sender":           m.Sender,
			"recipient":        user.Email,
			"username":         user.Username,
			"registration_key": registrationKey,
		})
	}()
}
