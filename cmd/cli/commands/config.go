package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/dreamtools/dream-background-remover/internal/model"
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configSetModeCmd)
	configCmd.AddCommand(configSetModelCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change the stored plugin settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var st model.SettingsResponse
		if err := doJSON(http.MethodGet, "/api/settings", nil, &st); err != nil {
			return err
		}

		key := "(not set)"
		if st.APIKeySet {
			key = st.APIKeyHint
			if key == "" {
				key = "(set)"
			}
		}
		fmt.Printf("API key: %s\n", key)
		fmt.Printf("Mode:    %s\n", st.Mode)
		fmt.Printf("Model:   %s (%s)\n", st.Model, st.ModelDisplay)
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Store the Replicate API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateSettings(model.SettingsUpdateRequest{APIKey: &args[0]})
	},
}

var configSetModeCmd = &cobra.Command{
	Use:   "set-mode <create_layer|create_file>",
	Short: "Set the default result mode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := model.Mode(args[0])
		return updateSettings(model.SettingsUpdateRequest{Mode: &mode})
	},
}

var configSetModelCmd = &cobra.Command{
	Use:   "set-model <851-labs|bria>",
	Short: "Set the background-removal model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateSettings(model.SettingsUpdateRequest{Model: &args[0]})
	},
}

func updateSettings(req model.SettingsUpdateRequest) error {
	var resp model.SettingsUpdateResponse
	if err := doJSON(http.MethodPut, "/api/settings", &req, &resp); err != nil {
		return err
	}
	if !resp.Persisted {
		fmt.Println("Saved for this session only (settings file not writable)")
		return nil
	}
	fmt.Println("Saved")
	return nil
}
