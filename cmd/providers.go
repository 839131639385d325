package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/pocketledger/expense-cli/internal/model"
)

// providerStatus is one row of `expense-cli providers` output.
type providerStatus struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	TimeoutSecs  int      `json:"timeout_secs"`
	MaxRetries   int      `json:"max_retries"`
	Circuit      string   `json:"circuit"`
	Recommended  []string `json:"recommended_for,omitempty"`
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show configured providers, capabilities, and circuit state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		recommended := make(map[string][]string)
		for _, m := range []model.InputMethod{model.InputScreenshot, model.InputVoice, model.InputReceipt, model.InputText} {
			if desc, ok := env.Router.Recommended(m); ok {
				recommended[desc.Name] = append(recommended[desc.Name], string(m))
			}
		}

		states := env.Router.BreakerStates()
		var out []providerStatus
		for _, desc := range env.Registry.Descriptors() {
			caps := make([]string, 0, len(desc.Capabilities))
			for _, c := range desc.Capabilities {
				caps = append(caps, string(c))
			}
			out = append(out, providerStatus{
				Name:         desc.Name,
				Capabilities: caps,
				TimeoutSecs:  int(desc.Timeout.Seconds()),
				MaxRetries:   desc.MaxRetries,
				Circuit:      states[desc.Name].String(),
				Recommended:  recommended[desc.Name],
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
