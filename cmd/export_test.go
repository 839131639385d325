package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/pocketledger/expense-cli/internal/model"
)

func TestWriteRecordsXLSX(t *testing.T) {
	records := []model.TransactionRecord{
		{
			ID:          "expense_1_aaaa",
			Amount:      35.50,
			Category:    "Food",
			Merchant:    "星巴克",
			Description: "coffee",
			Timestamp:   "2026-03-15T08:30:00Z",
			Confidence:  0.92,
			InputMethod: model.InputText,
			Tags:        []string{"coffee", "morning"},
			Currency:    "CNY",
			Verified:    true,
			SyncStatus:  model.SyncPending,
			CreatedAt:   time.Date(2026, 3, 15, 8, 30, 0, 0, time.UTC),
		},
		{
			ID:          "expense_2_bbbb",
			Amount:      12000,
			Category:    "Shopping",
			Merchant:    "苹果",
			InputMethod: model.InputReceipt,
			Currency:    "CNY",
			SyncStatus:  model.SyncPending,
			Anomaly:     "high-value anomaly",
			CreatedAt:   time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC),
		},
	}

	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, writeRecordsXLSX(records, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "Expenses", sheet.Name)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "ID", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "expense_1_aaaa", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "星巴克", sheet.Rows[1].Cells[4].String())
	assert.Equal(t, "coffee, morning", sheet.Rows[1].Cells[9].String())
	assert.Equal(t, "true", sheet.Rows[1].Cells[10].String())
	assert.Equal(t, "high-value anomaly", sheet.Rows[2].Cells[12].String())
}

func TestWriteRecordsXLSXEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, writeRecordsXLSX(nil, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	// Header row only.
	require.Len(t, f.Sheets[0].Rows, 1)
}
