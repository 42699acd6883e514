package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LabelRecord is the GORM model for a purchased label persisted in Postgres.
type LabelRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	LabelID        string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"label_id"`
	RateID         string    `gorm:"type:varchar(128);index" json:"rate_id"`
	WorkflowID     string    `gorm:"type:varchar(64);index" json:"workflow_id"`
	Status         string    `gorm:"type:varchar(32)" json:"status"`
	TrackingNumber string    `gorm:"type:varchar(256);index" json:"tracking_number"`
	Currency       string    `gorm:"type:varchar(8)" json:"currency"`
	Amount         float64   `json:"amount"`
	DownloadURL    string    `gorm:"type:varchar(1024)" json:"download_url"`
	// Full label snapshot stored as JSON
	LabelJSON string         `gorm:"type:jsonb" json:"-"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName pins the table name.
func (LabelRecord) TableName() string { return "labels" }

// NewLabelRecord snapshots a purchased label for persistence.
func NewLabelRecord(workflowID, rateID string, label *ShippingLabel) (*LabelRecord, error) {
	b, err := json.Marshal(label)
	if err != nil {
		return nil, err
	}
	return &LabelRecord{
		LabelID:        label.LabelID,
		RateID:         rateID,
		WorkflowID:     workflowID,
		Status:         label.Status,
		TrackingNumber: label.TrackingNumber,
		Currency:       label.ShipmentCost.Currency,
		Amount:         label.ShipmentCost.Amount,
		DownloadURL:    label.DownloadURL,
		LabelJSON:      string(b),
	}, nil
}

// Label decodes the stored snapshot.
func (r *LabelRecord) Label() (*ShippingLabel, error) {
	var l ShippingLabel
	if err := json.Unmarshal([]byte(r.LabelJSON), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// LabelPurchasedEvent is published to SNS when a label is purchased.
type LabelPurchasedEvent struct {
	EventType      string    `json:"event_type"`
	WorkflowID     string    `json:"workflow_id"`
	LabelID        string    `json:"label_id"`
	RateID         string    `json:"rate_id"`
	TrackingNumber string    `json:"tracking_number"`
	Currency       string    `json:"currency"`
	Amount         float64   `json:"amount"`
	Timestamp      time.Time `json:"timestamp"`
}
