package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pocketledger/expense-cli/internal/model"
	"github.com/pocketledger/expense-cli/internal/store"
)

var (
	recordsCategory  string
	recordsMethod    string
	recordsStatus    string
	recordsAnomalies bool
	recordsLimit     int
	recordsOffset    int
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List stored expense records",
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
			Category:      recordsCategory,
			InputMethod:   model.InputMethod(recordsMethod),
			SyncStatus:    model.SyncStatus(recordsStatus),
			OnlyAnomalies: recordsAnomalies,
			Limit:         recordsLimit,
			Offset:        recordsOffset,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

func init() {
	recordsCmd.Flags().StringVar(&recordsCategory, "category", "", "filter by category")
	recordsCmd.Flags().StringVar(&recordsMethod, "method", "", "filter by input method")
	recordsCmd.Flags().StringVar(&recordsStatus, "sync-status", "", "filter by sync status")
	recordsCmd.Flags().BoolVar(&recordsAnomalies, "anomalies", false, "only records flagged as anomalous")
	recordsCmd.Flags().IntVar(&recordsLimit, "limit", 0, "max records to return (default 100)")
	recordsCmd.Flags().IntVar(&recordsOffset, "offset", 0, "records to skip")
	rootCmd.AddCommand(recordsCmd)
}
