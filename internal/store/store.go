// Package store persists canonical transaction records. Two backends are
// provided: SQLite for local single-user use and Postgres for shared
// deployments.
package store

import (
	"context"

	"github.com/pocketledger/expense-cli/internal/model"
)

// ListFilter specifies criteria for listing records.
type ListFilter struct {
	Category      string            `json:"category,omitempty"`
	InputMethod   model.InputMethod `json:"input_method,omitempty"`
	SyncStatus    model.SyncStatus  `json:"sync_status,omitempty"`
	OnlyAnomalies bool              `json:"only_anomalies,omitempty"`
	Limit         int               `json:"limit,omitempty"`
	Offset        int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for transaction records.
type Store interface {
	SaveRecord(ctx context.Context, record *model.TransactionRecord) error
	GetRecord(ctx context.Context, id string) (*model.TransactionRecord, error)
	ListRecords(ctx context.Context, filter ListFilter) ([]model.TransactionRecord, error)
	// UpdateSyncStatus is the one out-of-band mutation the store owns.
	UpdateSyncStatus(ctx context.Context, id string, status model.SyncStatus) error

	Migrate(ctx context.Context) error
	Close() error
}
