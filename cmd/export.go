package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/pocketledger/expense-cli/internal/model"
	"github.com/pocketledger/expense-cli/internal/store"
)

var (
	exportOutput   string
	exportCategory string
	exportLimit    int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored expense records to an XLSX spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("no store configured")
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		records, err := st.ListRecords(ctx, store.ListFilter{
			Category: exportCategory,
			Limit:    exportLimit,
		})
		if err != nil {
			return err
		}

		if err := writeRecordsXLSX(records, exportOutput); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.Int("records", len(records)),
			zap.String("output", exportOutput))
		return nil
	},
}

var exportHeader = []string{
	"ID", "Amount", "Currency", "Category", "Merchant", "Description",
	"Timestamp", "Confidence", "Input Method", "Tags", "Verified",
	"Sync Status", "Anomaly", "Created At",
}

// writeRecordsXLSX writes records to an XLSX file with a header row.
func writeRecordsXLSX(records []model.TransactionRecord, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Expenses")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().Value = h
	}

	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().Value = r.ID
		row.AddCell().SetFloatWithFormat(r.Amount, "0.00")
		row.AddCell().Value = r.Currency
		row.AddCell().Value = r.Category
		row.AddCell().Value = r.Merchant
		row.AddCell().Value = r.Description
		row.AddCell().Value = r.Timestamp
		row.AddCell().SetFloat(r.Confidence)
		row.AddCell().Value = string(r.InputMethod)
		row.AddCell().Value = strings.Join(r.Tags, ", ")
		row.AddCell().Value = fmt.Sprintf("%t", r.Verified)
		row.AddCell().Value = string(r.SyncStatus)
		row.AddCell().Value = r.Anomaly
		row.AddCell().Value = r.CreatedAt.Format("2006-01-02 15:04:05")
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save file")
	}
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "expenses.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportCategory, "category", "", "filter by category")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "max records to export")
	rootCmd.AddCommand(exportCmd)
}
