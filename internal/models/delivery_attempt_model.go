package models

import "time"

type DeliveryAttempt struct {
	ID            int64     `db:"id" json:"id"`
	PublicationID string    `db:"publication_id" json:"publication_id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	Platform      Platform  `db:"platform" json:"platform"`
	ExternalID    string    `db:"external_id" json:"external_id,omitempty"`
	ErrorMessage  string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

func (a *DeliveryAttempt) Succeeded() bool {
	return a.ErrorMessage == ""
}
