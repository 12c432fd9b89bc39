package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/onyx-network/onyx/pkg/version"
)

var configFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "onyxd",
		Short: "Switch interface control-plane adapter",
		Long: `Onyxd keeps the declared interface configuration tree synchronized
with the forwarding plane and its state store: it applies configuration
commits transactionally, reconciles full interface state after
forwarding-plane restarts, and publishes de-duplicated link-state
notifications.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(
		newRunCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("onyxd %s\n", version.Info())
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
