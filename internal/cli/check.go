package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [station...]",
	Short: "Evaluate stations and send alerts for out-of-range levels",
	Long: `Evaluate the latest reading of each named station, or of every station when
none is given. LOW and HIGH results are sent to all enabled alert channels.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := initApp(cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	var results []model.Evaluation
	if len(args) == 0 {
		results, err = a.monitor.CheckAll(cmd.Context())
		if err != nil {
			return err
		}
	} else {
		for _, id := range args {
			eval, err := a.monitor.CheckStation(cmd.Context(), id)
			if err != nil {
				return err
			}
			results = append(results, *eval)
		}
	}

	printEvaluations(cmd.OutOrStdout(), results)
	return nil
}

func printEvaluations(out io.Writer, results []model.Evaluation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "STATION\tLEVEL\tSTATE\tNOTIFIED\tMESSAGE\n")
	for _, e := range results {
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%t\t%s\n",
			e.StationID, e.Reading.WaterLevel, e.State, e.Notified, e.Message)
	}
	w.Flush()
}
