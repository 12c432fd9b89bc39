package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onyx-network/onyx/pkg/audit"
)

func newAuditCmd() *cobra.Command {
	var (
		trailPath    string
		operation    string
		failuresOnly bool
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the adapter's audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			trail, err := audit.NewFileLogger(trailPath, audit.RotationConfig{})
			if err != nil {
				return err
			}
			defer trail.Close()

			events, err := trail.Query(audit.Filter{
				Operation:   operation,
				FailureOnly: failuresOnly,
				Limit:       limit,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tOPERATION\tRESULT\tDURATION\tDETAIL")
			for _, e := range events {
				result := "ok"
				detail := strings.Join(e.Paths, ",")
				if !e.Success {
					result = "failed"
					detail = e.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.Operation, result, e.Duration, detail)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&trailPath, "trail", "/var/log/onyx/audit.log", "Audit trail file")
	cmd.Flags().StringVar(&operation, "operation", "", "Filter by operation (commit, reconcile)")
	cmd.Flags().BoolVar(&failuresOnly, "failures", false, "Show failures only")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum events to show")
	return cmd
}
