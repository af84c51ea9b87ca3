package notify

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/realtechee/platform/errors"
)

// Delivery statuses recorded in the delivery log.
const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

// Delivery is one attempted hand-off of a rendered notification to a
// provider. One job can produce several deliveries (one per recipient).
type Delivery struct {
	ID                string     `json:"id"`
	JobID             string     `json:"job_id"`
	EventKey          string     `json:"event_key"`
	Channel           string     `json:"channel"` // email | sms
	Recipient         string     `json:"recipient"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	Status            string     `json:"status"`
	Error             string     `json:"error,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// DeliveryStore persists delivery attempts in the local sqlite store.
type DeliveryStore struct {
	db *sql.DB
}

// NewDeliveryStore creates a delivery log store.
func NewDeliveryStore(db *sql.DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

// RecordSent logs a successful hand-off to a provider.
func (s *DeliveryStore) RecordSent(jobID, eventKey, channel, recipient, providerMessageID string) error {
	now := time.Now()
	return s.insert(&Delivery{
		ID:                uuid.NewString(),
		JobID:             jobID,
		EventKey:          eventKey,
		Channel:           channel,
		Recipient:         recipient,
		ProviderMessageID: providerMessageID,
		Status:            DeliveryStatusSent,
		SentAt:            &now,
		CreatedAt:         now,
	})
}

// RecordFailed logs a delivery attempt the provider rejected.
func (s *DeliveryStore) RecordFailed(jobID, eventKey, channel, recipient string, sendErr error) error {
	return s.insert(&Delivery{
		ID:        uuid.NewString(),
		JobID:     jobID,
		EventKey:  eventKey,
		Channel:   channel,
		Recipient: recipient,
		Status:    DeliveryStatusFailed,
		Error:     sendErr.Error(),
		CreatedAt: time.Now(),
	})
}

func (s *DeliveryStore) insert(d *Delivery) error {
	query := `
		INSERT INTO delivery_log (
			id, job_id, event_key, channel, recipient,
			provider_message_id, status, error, sent_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	providerID := sql.NullString{String: d.ProviderMessageID, Valid: d.ProviderMessageID != ""}
	errMsg := sql.NullString{String: d.Error, Valid: d.Error != ""}
	sentAt := sql.NullTime{}
	if d.SentAt != nil {
		sentAt = sql.NullTime{Time: *d.SentAt, Valid: true}
	}

	_, err := s.db.Exec(query,
		d.ID, d.JobID, d.EventKey, d.Channel, d.Recipient,
		providerID, d.Status, errMsg, sentAt, d.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to record delivery")
	}
	return nil
}

// ListByJob returns all delivery attempts recorded for a job, oldest first.
func (s *DeliveryStore) ListByJob(jobID string) ([]*Delivery, error) {
	return s.list(`WHERE job_id = ? ORDER BY created_at ASC`, jobID)
}

// ListRecent returns the most recent delivery attempts.
func (s *DeliveryStore) ListRecent(limit int) ([]*Delivery, error) {
	return s.list(`ORDER BY created_at DESC LIMIT ?`, limit)
}

func (s *DeliveryStore) list(clause string, args ...interface{}) ([]*Delivery, error) {
	query := `
		SELECT id, job_id, event_key, channel, recipient,
		       provider_message_id, status, error, sent_at, created_at
		FROM delivery_log ` + clause

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list deliveries")
	}
	defer rows.Close()

	var deliveries []*Delivery
	for rows.Next() {
		var d Delivery
		var providerID, errMsg sql.NullString
		var sentAt sql.NullTime

		if err := rows.Scan(
			&d.ID, &d.JobID, &d.EventKey, &d.Channel, &d.Recipient,
			&providerID, &d.Status, &errMsg, &sentAt, &d.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan delivery row")
		}

		if providerID.Valid {
			d.ProviderMessageID = providerID.String
		}
		if errMsg.Valid {
			d.Error = errMsg.String
		}
		if sentAt.Valid {
			t := sentAt.Time
			d.SentAt = &t
		}
		deliveries = append(deliveries, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate delivery rows")
	}
	return deliveries, nil
}
