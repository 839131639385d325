// Package model defines the core domain types shared across the recognition
// pipeline: provider results, canonical transaction records, and provider
// metadata.
package model

import (
	"encoding/json"
	"time"
)

// InputMethod describes how the expense was captured.
type InputMethod string

const (
	InputScreenshot InputMethod = "screenshot"
	InputVoice      InputMethod = "voice"
	InputReceipt    InputMethod = "receipt"
	InputText       InputMethod = "text"
)

// Valid reports whether the input method is one of the supported values.
func (m InputMethod) Valid() bool {
	switch m {
	case InputScreenshot, InputVoice, InputReceipt, InputText:
		return true
	}
	return false
}

// SyncStatus tracks whether a record has been pushed to remote storage.
// The pipeline always emits records as pending; later transitions are owned
// by the storage layer.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// ConfirmationThreshold is the confidence below which a result needs user
// confirmation, and above which a record counts as verified.
const ConfirmationThreshold = 0.8

// StandardizedResult is the common output shape every provider adapter
// coerces its reply into before normalization.
type StandardizedResult struct {
	Amount            float64         `json:"amount"`
	Category          string          `json:"category"`
	Merchant          string          `json:"merchant"`
	Description       string          `json:"description"`
	Timestamp         string          `json:"timestamp"` // ISO-8601
	Confidence        float64         `json:"confidence"`
	InputMethod       InputMethod     `json:"input_method"`
	RawData           json.RawMessage `json:"raw_data,omitempty"`
	Suggestions       []string        `json:"suggestions,omitempty"`
	NeedsConfirmation bool            `json:"needs_confirmation"`
	Provider          string          `json:"provider,omitempty"`
}

// TransactionRecord is the canonical persisted expense entity. It is created
// exactly once per successful pipeline run and immutable afterwards, except
// for SyncStatus and Verified which the store may update out-of-band.
type TransactionRecord struct {
	ID          string          `json:"id"`
	Amount      float64         `json:"amount"`
	Category    string          `json:"category"`
	Merchant    string          `json:"merchant"`
	Description string          `json:"description"`
	Timestamp   string          `json:"timestamp"` // ISO-8601
	Confidence  float64         `json:"confidence"`
	InputMethod InputMethod     `json:"input_method"`
	Tags        []string        `json:"tags"`
	RawData     json.RawMessage `json:"raw_data,omitempty"`
	Currency    string          `json:"currency"`
	Verified    bool            `json:"verified"`
	SyncStatus  SyncStatus      `json:"sync_status"`
	Anomaly     string          `json:"anomaly,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// HasTag reports whether the record carries the given tag.
func (r *TransactionRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ProviderDescriptor is static, process-lifetime metadata about a registered
// recognition backend.
type ProviderDescriptor struct {
	Name           string        `json:"name"`
	HasCredentials bool          `json:"has_credentials"`
	Capabilities   []InputMethod `json:"capabilities"`
	Timeout        time.Duration `json:"timeout"`
	MaxRetries     int           `json:"max_retries"`
}

// Supports reports whether the descriptor lists the given input method.
func (d ProviderDescriptor) Supports(m InputMethod) bool {
	for _, c := range d.Capabilities {
		if c == m {
			return true
		}
	}
	return false
}
