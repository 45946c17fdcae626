package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ogulcanaydogan/dwlr-guardian/pkg/dataset"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <csv>",
	Short: "Import readings from a CSV file into the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export <station>",
	Short: "Export one station's readings as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "", "Output file (default <station>_water_data.csv, - for stdout)")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ds, err := dataset.Load(args[0])
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	readings, err := ds.AllReadings(cmd.Context())
	if err != nil {
		return err
	}
	n, err := store.SaveReadings(cmd.Context(), readings)
	if err != nil {
		return fmt.Errorf("import readings: %w", err)
	}
	stations, _ := ds.Stations(cmd.Context())

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d readings for %d stations into %s\n", n, len(stations), cfg.Storage.Path)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source, closeFn, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	id := args[0]
	readings, err := source.StationReadings(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("load readings: %w", err)
	}
	if len(readings) == 0 {
		return &model.EmptySeriesError{StationID: id}
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = dataset.ExportFilename(id)
	}

	var w io.Writer = cmd.OutOrStdout()
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	if err := dataset.WriteCSV(w, readings); err != nil {
		return fmt.Errorf("export %s: %w", id, err)
	}
	if output != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d readings to %s\n", len(readings), output)
	}
	return nil
}
