package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ReportMessage is the wire envelope for one raw adverse event report.
// The Kafka message key is the safety report id so every revision of a
// report lands on the same partition, preserving per-report ordering.
// Reports missing the id still travel the bus; the transformer is the
// single place that validates and skips them.
type ReportMessage struct {
	SafetyReportID string           `json:"safety_report_id"`
	Stream         string           `json:"stream"`
	RunID          string           `json:"run_id"`
	WindowStart    string           `json:"window_start"`
	WindowEnd      string           `json:"window_end"`
	FetchedAt      time.Time        `json:"fetched_at"`
	Report         models.RawReport `json:"report"`
}

// ToJSON serializes the message for the wire.
func (m *ReportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ParseReportMessage deserializes a wire message.
func ParseReportMessage(data []byte) (*ReportMessage, error) {
	var msg ReportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse report message: %w", err)
	}
	return &msg, nil
}

// Key returns the partition key for the message.
func (m *ReportMessage) Key() string {
	return m.SafetyReportID
}
