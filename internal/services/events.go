package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/shopyard/auth-service/internal/interfaces"
)

const (
	eventRegistered      = "account.registered"
	eventEmailVerified   = "account.email_verified"
	eventPasswordChanged = "account.password_changed"
	eventStatusChanged   = "account.status_changed"
)

type accountEvent struct {
	EventID    string `json:"event_id"`
	Type       string `json:"type"`
	AccountID  uint   `json:"account_id"`
	Email      string `json:"email"`
	OccurredAt string `json:"occurred_at"`
}

// publishEvent is best-effort; broker failures are logged and swallowed.
func publishEvent(producer interfaces.ProducerHandler, eventType string, accountID uint, email string) {
	if producer == nil {
		return
	}
	payload, err := json.Marshal(accountEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		AccountID:  accountID,
		Email:      email,
		OccurredAt: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := producer.PublishMessage([]byte(eventType), payload); err != nil {
		log.Printf("publish %s event error: %v", eventType, err)
	}
}
