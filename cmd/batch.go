package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pocketledger/expense-cli/internal/model"
	"github.com/pocketledger/expense-cli/internal/pipeline"
)

var batchManifest string

// manifestEntry is one capture in a batch manifest file. Exactly one of Text
// or File must be set.
type manifestEntry struct {
	Method string `json:"method"`
	Text   string `json:"text,omitempty"`
	File   string `json:"file,omitempty"`
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process a manifest of expense captures concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		items, err := loadManifest(batchManifest)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		records := env.Processor.Batch(ctx, items)

		zap.L().Info("batch complete",
			zap.Int("submitted", len(items)),
			zap.Int("succeeded", len(records)),
			zap.Int("failed", len(items)-len(records)))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

// loadManifest parses the manifest and resolves file entries relative to the
// manifest's own directory.
func loadManifest(path string) ([]pipeline.BatchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read manifest")
	}

	var entries []manifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrap(err, "parse manifest")
	}

	baseDir := filepath.Dir(path)
	items := make([]pipeline.BatchItem, 0, len(entries))
	for i, e := range entries {
		method := model.InputMethod(e.Method)
		if !method.Valid() {
			return nil, eris.Errorf("manifest entry %d: invalid method %q", i, e.Method)
		}

		var payload []byte
		switch {
		case e.Text != "":
			payload = []byte(e.Text)
		case e.File != "":
			file := e.File
			if !filepath.IsAbs(file) {
				file = filepath.Join(baseDir, file)
			}
			payload, err = os.ReadFile(file)
			if err != nil {
				return nil, eris.Wrapf(err, "manifest entry %d: read file", i)
			}
		default:
			return nil, eris.Errorf("manifest entry %d: either text or file is required", i)
		}

		items = append(items, pipeline.BatchItem{Method: method, Payload: payload})
	}
	return items, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchManifest, "manifest", "", "path to a JSON manifest of captures (required)")
	_ = batchCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(batchCmd)
}
