package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onyx-network/onyx/pkg/driver"
	"github.com/onyx-network/onyx/pkg/util"
)

func newShowCmd() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show adapter state",
	}
	showCmd.AddCommand(newShowInterfacesCmd(), newShowCountersCmd())
	return showCmd
}

func newShowInterfacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interfaces",
		Short: "Show interface runtime state",
		RunE: func(cmd *cobra.Command, args []string) error {
			appl := driver.NewApplDBClient(redisAddrFlag)
			if err := appl.Connect(); err != nil {
				return fmt.Errorf("connecting to state store: %w", err)
			}
			defer appl.Close()

			names, err := appl.PortNames()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INTERFACE\tADMIN\tOPER\tSPEED\tMTU\tFEC")
			for _, name := range names {
				entry, err := appl.PortEntry(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					name,
					orDash(entry["admin_status"]),
					orDash(entry["oper_status"]),
					orDash(entry["speed"]),
					orDash(entry["mtu"]),
					orDash(entry["fec"]))
			}
			return w.Flush()
		},
	}
}

func newShowCountersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counters <interface>",
		Short: "Show hardware counters for an interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			counters := driver.NewCountersDBClient(redisAddrFlag)
			if err := counters.Connect(); err != nil {
				return fmt.Errorf("connecting to state store: %w", err)
			}
			defer counters.Close()

			vals, err := counters.PortCounters(args[0])
			if errors.Is(err, util.ErrNotFound) {
				return fmt.Errorf("%s: no counters published yet", args[0])
			}
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(vals))
			for k := range vals {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COUNTER\tVALUE")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%d\n", k, vals[k])
			}
			return w.Flush()
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
