package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/onyx-network/onyx/pkg/version"
)

var redisAddrFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "onyxctl",
		Short: "Operator CLI for the onyx adapter",
		Long: `Onyxctl inspects the adapter's state store: interface runtime state,
hardware counters, and the audit trail.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	}

	rootCmd.PersistentFlags().StringVar(&redisAddrFlag, "redis", "localhost:6379", "State store address")

	rootCmd.AddCommand(
		newShowCmd(),
		newAuditCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("onyxctl %s\n", version.Info())
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
