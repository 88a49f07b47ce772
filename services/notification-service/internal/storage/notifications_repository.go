package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

// Notification is one delivery attempt outcome, kept for auditing.
type Notification struct {
	AppointmentID string
	Channel       string
	Recipient     string
	Payload       map[string]any
	Status        string
	ErrorReason   string
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO notifications (appointment_id, channel, recipient, payload, status, error_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.AppointmentID, n.Channel, n.Recipient, payload, n.Status, n.ErrorReason)
	return err
}
