package model

import (
	"strings"
	"time"
)

// CallStatus is the lifecycle state of a persisted call.
type CallStatus string

const (
	CallStatusPending     CallStatus = "pending"
	CallStatusTranscribed CallStatus = "transcribed"
	CallStatusAudited     CallStatus = "audited"
)

// CallType classifies the direction of a call.
type CallType string

const (
	CallTypeInbound  CallType = "inbound"
	CallTypeOutbound CallType = "outbound"
	CallTypeInternal CallType = "internal"
)

// Source system tags carried on extracted rows.
const (
	SourceFive9 = "F9"
)

// CallCandidate is a call row extracted from the recording log, not yet
// deduplicated or persisted.
type CallCandidate struct {
	RecordingID       string    `json:"recording_id"`
	CallID            string    `json:"call_id"`
	AgentEmail        string    `json:"agent_email"`
	AgentName         string    `json:"agent_name,omitempty"`
	AgentGroup        string    `json:"agent_group,omitempty"`
	UploadedAt        time.Time `json:"uploaded_at"`
	CallStartedAt     time.Time `json:"call_started_at"`
	DurationSeconds   int       `json:"duration_seconds"`
	CallTypeRaw       string    `json:"call_type_raw,omitempty"`
	Disposition       string    `json:"disposition,omitempty"`
	Campaign          string    `json:"campaign,omitempty"`
	CustomerPhone     string    `json:"customer_phone,omitempty"`
	CustomerEmail     string    `json:"customer_email,omitempty"`
	CustomerFirstName string    `json:"customer_first_name,omitempty"`
	CustomerLastName  string    `json:"customer_last_name,omitempty"`
	CustomerID        string    `json:"customer_id,omitempty"`
	SourceSystem      string    `json:"source_system"`
	FilePath          string    `json:"file_path,omitempty"`
	FileName          string    `json:"file_name,omitempty"`
	RecordingURL      string    `json:"recording_url,omitempty"`
	TranscriptURL     string    `json:"transcript_url,omitempty"`
	SummaryURL        string    `json:"summary_url,omitempty"`
}

// ExternalID returns the natural key used to deduplicate calls. The
// source call id wins; rows without one fall back to the recording id.
func (c CallCandidate) ExternalID() string {
	if id := strings.TrimSpace(c.CallID); id != "" {
		return id
	}
	return strings.TrimSpace(c.RecordingID)
}

// AgentKey is the normalized identity key of the handling agent.
func (c CallCandidate) AgentKey() string {
	return NormalizeEmail(c.AgentEmail)
}

// CustomerName joins the customer's first and last name.
func (c CallCandidate) CustomerName() string {
	return strings.TrimSpace(strings.TrimSpace(c.CustomerFirstName) + " " + strings.TrimSpace(c.CustomerLastName))
}

// EnrichedCall is a candidate plus whatever transcript and summary text
// could be fetched. Empty text means "not available".
type EnrichedCall struct {
	CallCandidate
	TranscriptText string `json:"transcript_text,omitempty"`
	SummaryText    string `json:"summary_text,omitempty"`
}

// HasTranscript reports whether transcript text was retrieved.
func (e EnrichedCall) HasTranscript() bool {
	return e.TranscriptText != ""
}

// PersistedCall is a row in the destination calls table.
type PersistedCall struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"user_id"`
	CallID              string     `json:"call_id"`
	CampaignName        string     `json:"campaign_name,omitempty"`
	CallType            CallType   `json:"call_type"`
	CallStartTime       time.Time  `json:"call_start_time"`
	CallDurationSeconds int        `json:"call_duration_seconds"`
	RecordingURL        string     `json:"recording_url,omitempty"`
	TranscriptURL       string     `json:"transcript_url,omitempty"`
	TranscriptText      string     `json:"transcript_text,omitempty"`
	SummaryURL          string     `json:"summary_url,omitempty"`
	SummaryText         string     `json:"summary_text,omitempty"`
	CustomerPhone       string     `json:"customer_phone,omitempty"`
	CustomerName        string     `json:"customer_name,omitempty"`
	Disposition         string     `json:"disposition,omitempty"`
	Status              CallStatus `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// NormalizeEmail trims and lower-cases an identity key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
