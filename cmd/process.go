package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pocketledger/expense-cli/internal/model"
)

var (
	processText   string
	processFile   string
	processMethod string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Recognize a single expense from text, an image, or an audio file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		method := model.InputMethod(processMethod)
		if !method.Valid() {
			return eris.Errorf("invalid --method %q (want screenshot, voice, receipt, or text)", processMethod)
		}

		var payload []byte
		switch {
		case processText != "":
			payload = []byte(processText)
		case processFile != "":
			data, err := os.ReadFile(processFile)
			if err != nil {
				return eris.Wrap(err, "read input file")
			}
			payload = data
		default:
			return eris.New("either --text or --file is required")
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		record, err := env.Processor.Process(ctx, method, payload)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

func init() {
	processCmd.Flags().StringVar(&processText, "text", "", "expense description text")
	processCmd.Flags().StringVar(&processFile, "file", "", "path to an image or audio file")
	processCmd.Flags().StringVar(&processMethod, "method", "text", "input method: screenshot, voice, receipt, or text")
	rootCmd.AddCommand(processCmd)
}
