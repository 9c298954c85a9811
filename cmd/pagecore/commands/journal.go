package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pagecore/pkg/stores"
)

func newJournalCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the run journal",
		Long: `Inspect runs, trace events and soft failures recorded in the SQLite
journal. The journal path defaults to the one in the config.`,
	}
	cmd.PersistentFlags().StringVar(&path, "db", "", "journal database path")

	open := func(cmd *cobra.Command) (*stores.SQLiteStore, error) {
		if path == "" {
			cfg, err := loadConfig()
			if err != nil {
				return nil, err
			}
			path = cfg.Journal.Path
		}
		return openStore(cmd.Context(), path)
	}

	cmd.AddCommand(newJournalRunsCommand(open))
	cmd.AddCommand(newJournalEventsCommand(open))
	cmd.AddCommand(newJournalSoftCommand(open))
	cmd.AddCommand(newJournalDeleteCommand(open))
	cmd.AddCommand(newJournalCheckCommand(open))
	return cmd
}

type storeOpener func(cmd *cobra.Command) (*stores.SQLiteStore, error)

func newJournalRunsCommand(open storeOpener) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), runs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSCENARIO\tSTATUS\tSOFT\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.Scenario, r.Status, r.SoftFailures, r.StartedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	cmd.Flags().IntVar(&offset, "offset", 0, "runs to skip")
	return cmd
}

func newJournalEventsCommand(open storeOpener) *cobra.Command {
	var (
		eventType string
		level     string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "events <run-id>",
		Short: "Show the trace events of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			q := stores.EventQuery{RunID: &args[0], Limit: limit}
			if eventType != "" {
				q.Type = &eventType
			}
			if level != "" {
				l := stores.EventLevel(level)
				q.Level = &l
			}
			events, err := store.GetEvents(cmd.Context(), q)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), events)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tLEVEL\tTYPE\tOPERATION\tMESSAGE")
			for _, e := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Local().Format("15:04:05.000"), e.Level, e.Type, e.Operation, e.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&eventType, "type", "", "only events of this type")
	cmd.Flags().StringVar(&level, "level", "", "only events of this level (debug, info, warning, error)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of events")
	return cmd
}

func newJournalSoftCommand(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "soft <run-id>",
		Short: "List the soft assertion failures of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			failures, err := store.ListSoftFailures(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), failures)
			}
			for i, f := range failures {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s %s: %s\n   expected: %s\n   actual:   %s\n",
					i+1, f.Predicate, f.Target, f.Message, f.Expected, f.Actual)
			}
			return nil
		},
	}
}

func newJournalDeleteCommand(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Delete runs with their events and soft failures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, id := range args {
				if err := store.DeleteRun(cmd.Context(), id); err != nil {
					return err
				}
				log.Info().Str("run_id", id).Msg("Run deleted")
			}
			return nil
		},
	}
}

func newJournalCheckCommand(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the journal opens and answers queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.HealthCheck(cmd.Context()); err != nil {
				return fmt.Errorf("journal unhealthy: %w", err)
			}
			latest, err := store.ListRuns(cmd.Context(), 1, 0)
			if err != nil {
				return fmt.Errorf("journal unhealthy: %w", err)
			}

			status := struct {
				Path    string `json:"path"`
				Healthy bool   `json:"healthy"`
				LastRun string `json:"lastRun,omitempty"`
			}{Path: store.Path(), Healthy: true}
			if len(latest) > 0 {
				status.LastRun = latest[0].ID
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "journal %s ok\n", status.Path)
			if status.LastRun != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "last run: %s\n", status.LastRun)
			}
			return nil
		},
	}
}
