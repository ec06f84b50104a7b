package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	flagServerAddress = "server-address"
	envServerAddress  = "DREAM_REMOVER_ADDR"
	defaultAddress    = "http://127.0.0.1:8517"
)

// serverAddress holds the daemon address. Flag parsing sets this.
var serverAddress string

func init() {
	RootCmd.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s", defaultAddress,
		"Address of the background remover daemon (env: DREAM_REMOVER_ADDR)")

	RootCmd.AddCommand(removeCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(cancelCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(configCmd)
}

// RootCmd is the base command.
var RootCmd = &cobra.Command{
	Use:   "dream-remover",
	Short: "Remove image backgrounds through the Dream Background Remover daemon",
	Long: `dream-remover is the headless companion to the GIMP plugin: it sends
images to the local daemon, which calls the hosted background-removal
model and writes the result next to the source file.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Precedence: flag > env > default
		if !cmd.Flags().Changed(flagServerAddress) {
			if addr := os.Getenv(envServerAddress); addr != "" {
				serverAddress = addr
			}
		}
		if serverAddress == "" {
			return fmt.Errorf("server address cannot be empty")
		}
		return nil
	},
}
