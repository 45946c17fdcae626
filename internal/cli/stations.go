package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/ogulcanaydogan/dwlr-guardian/internal/config"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/monitor"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/storage"
	"github.com/spf13/cobra"
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List stations with their latest reading and state",
	RunE:  runStations,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show min, max and mean water level per station",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(stationsCmd)
	rootCmd.AddCommand(statsCmd)
}

// openSource opens the configured reading source without wiring notifiers.
func openSource(cfg *config.Config) (storage.ReadingSource, func(), error) {
	store, err := initStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	source, err := initSource(cfg, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return source, func() { store.Close() }, nil
}

func loadStats(cmd *cobra.Command) (*config.Config, []model.StationStats, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	source, closeFn, err := openSource(cfg)
	if err != nil {
		return nil, nil, err
	}
	defer closeFn()

	readings, err := source.AllReadings(cmd.Context())
	if err != nil {
		return nil, nil, fmt.Errorf("load readings: %w", err)
	}
	return cfg, model.Summarize(readings), nil
}

func runStations(cmd *cobra.Command, _ []string) error {
	cfg, stats, err := loadStats(cmd)
	if err != nil {
		return err
	}

	t := monitor.Thresholds{Low: cfg.Thresholds.Low, High: cfg.Thresholds.High}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "STATION\tLATEST\tAT\tSTATE\tLAT\tLON\n")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\t%.4f\t%.4f\n",
			s.StationID, s.LatestLevel, s.LatestAt.Format("2006-01-02 15:04"),
			t.Evaluate(s.LatestLevel), s.Lat, s.Lon)
	}
	return w.Flush()
}

func runStats(cmd *cobra.Command, _ []string) error {
	_, stats, err := loadStats(cmd)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "STATION\tREADINGS\tMIN\tMAX\tMEAN\n")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\n", s.StationID, s.Count, s.Min, s.Max, s.Mean)
	}
	return w.Flush()
}
