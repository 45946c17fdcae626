package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show raised alerts from the alert log",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringP("station", "s", "", "Filter by station")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of alerts")
	historyCmd.Flags().Duration("since", 0, "Only alerts raised within this window, e.g. 72h")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	station, _ := cmd.Flags().GetString("station")
	limit, _ := cmd.Flags().GetInt("limit")
	since, _ := cmd.Flags().GetDuration("since")

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	filter := model.AlertFilter{StationID: station, Limit: limit}
	if since > 0 {
		filter.Since = time.Now().UTC().Add(-since)
	}

	records, err := store.ListAlerts(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No alerts recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RAISED\tSTATION\tSTATE\tLEVEL\tOBSERVED\n")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n",
			r.RaisedAt.Format("2006-01-02 15:04"),
			r.StationID, r.State, r.WaterLevel,
			r.ObservedAt.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}
