package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"regenie/internal/store"

	"github.com/spf13/cobra"
)

func eventsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recently received Slack events from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Store.Enabled {
				return fmt.Errorf("the event store is disabled (store.enabled)")
			}
			s, err := store.Open(cfg.Store.DBPath, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			recs, err := s.Recent(ctx, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RECEIVED\tEVENT\tKIND\tCHANNEL\tSTATUS\tERROR")
			for _, rec := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					rec.ReceivedAt.Local().Format(time.DateTime),
					rec.EventID, rec.Kind, rec.Channel, rec.Status, rec.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	return cmd
}
