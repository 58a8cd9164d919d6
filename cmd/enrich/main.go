// Command enrich drives website metadata enrichment for the organization
// directory against a running metadata endpoint.
//
//	enrich sweep                 one reconciliation pass
//	enrich sweep --interval 1m   keep reconciling until interrupted
//	enrich refresh <org-id>      discard and re-resolve one organization
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "enrich",
		Short: "Enrich organization websites with display metadata",
		Long: `enrich reads the organization directory, asks the metadata endpoint
(ENRICH_ENDPOINT) for every website that has no record yet, and prints one
JSON line per settled organization.

Requests run in groups of ENRICH_BATCH_SIZE with ENRICH_BATCH_DELAY between
groups; each lookup is retried ENRICH_MAX_RETRIES times with exponential
backoff before a fallback record is synthesized.`,
		Version:      resolvedVersion(),
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	root.AddCommand(newSweepCmd(&verbose), newRefreshCmd(&verbose))
	return root
}

func newSweepCmd(verbose *bool) *cobra.Command {
	var interval string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile every organization with a website",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			every, err := parseInterval(interval)
			if err != nil {
				return err
			}
			a, cleanup, err := bootstrap(cmd, *verbose)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.sweepLoop(cmd.Context(), every)
		},
	}
	cmd.Flags().StringVar(&interval, "interval", "0s", "Repeat the sweep at this interval (0 runs once)")
	return cmd
}

func newRefreshCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <org-id>",
		Short: "Discard one organization's record and resolve it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := bootstrap(cmd, *verbose)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.refresh(cmd.Context(), args[0])
		},
	}
}
