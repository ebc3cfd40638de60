package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mapyard/marker-ingest/internal/model"
	"github.com/mapyard/marker-ingest/internal/pipeline"
	"github.com/mapyard/marker-ingest/internal/profile"
	"github.com/mapyard/marker-ingest/internal/tabular"
)

var (
	runSource     string
	runAccount    string
	runMap        string
	runNameCol    string
	runAddressCol string
	runLatCol     string
	runLngCol     string
	runProfile    string
	runDelimiter  string
	runSheet      string
	runNoHeader   bool
	runCharset    string
	runDryRun     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Import location records into a map",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mapping, tabOpts, defaults, err := resolveRunInputs(cmd)
		if err != nil {
			return err
		}

		table, err := tabular.Load(ctx, runSource, tabOpts)
		if err != nil {
			return eris.Wrap(err, "load source")
		}
		zap.L().Info("source loaded",
			zap.String("source", runSource),
			zap.Int("rows", len(table.Rows)),
			zap.Int("columns", len(table.Columns)),
		)

		if runDryRun {
			formatPreview(os.Stdout, pipeline.Preview(table.Rows, mapping))
			return nil
		}

		env, err := initPipeline(ctx, pipeline.WithProgress(progressLogger()))
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, pipeline.Request{
			AccountID: runAccount,
			MapID:     runMap,
			Rows:      table.Rows,
			Mapping:   mapping,
			Defaults:  defaults,
		})

		// The summary is printed even for aborted runs; the result carries
		// whatever was persisted before the stop.
		formatRunSummary(os.Stdout, result)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runSource, "source", "", "source file path or URL (.csv, .txt, .xlsx, .shp) (required)")
	runCmd.Flags().StringVar(&runAccount, "account", "", "account ID (required)")
	runCmd.Flags().StringVar(&runMap, "map", "", "map ID (required)")
	runCmd.Flags().StringVar(&runNameCol, "name-col", "", "column holding the marker name")
	runCmd.Flags().StringVar(&runAddressCol, "address-col", "", "column holding the street address")
	runCmd.Flags().StringVar(&runLatCol, "lat-col", "", "column holding the latitude")
	runCmd.Flags().StringVar(&runLngCol, "lng-col", "", "column holding the longitude")
	runCmd.Flags().StringVar(&runProfile, "profile", "", "YAML import profile; explicit flags override it")
	runCmd.Flags().StringVar(&runDelimiter, "delimiter", "", "CSV field delimiter (default ',')")
	runCmd.Flags().StringVar(&runSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	runCmd.Flags().BoolVar(&runNoHeader, "no-header", false, "treat the first row as data")
	runCmd.Flags().StringVar(&runCharset, "charset", "", "source charset (e.g. latin1, windows-1251)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "normalize and dedupe only; persist nothing, geocode nothing")
	_ = runCmd.MarkFlagRequired("source")
	_ = runCmd.MarkFlagRequired("account")
	_ = runCmd.MarkFlagRequired("map")
	rootCmd.AddCommand(runCmd)
}

// resolveRunInputs merges the optional profile with explicit flags. Flags win
// field by field, so a profile can be reused with one column renamed.
func resolveRunInputs(cmd *cobra.Command) (model.ColumnMapping, tabular.Options, pipeline.MarkerDefaults, error) {
	var mapping model.ColumnMapping
	var tabOpts tabular.Options
	var defaults pipeline.MarkerDefaults

	if runProfile != "" {
		prof, err := profile.Load(runProfile)
		if err != nil {
			return mapping, tabOpts, defaults, err
		}
		mapping = prof.ColumnMapping()
		tabOpts = prof.TabularOptions()
		defaults = pipeline.MarkerDefaults{
			Type:      prof.Defaults.MarkerType,
			Tags:      prof.Defaults.Tags,
			GroupHint: prof.Defaults.GroupHint,
		}
	}

	if runNameCol != "" {
		mapping.Name = runNameCol
	}
	if runAddressCol != "" {
		mapping.Address = runAddressCol
	}
	if runLatCol != "" {
		mapping.Lat = runLatCol
	}
	if runLngCol != "" {
		mapping.Lng = runLngCol
	}

	if runDelimiter != "" {
		r := []rune(runDelimiter)
		if len(r) != 1 {
			return mapping, tabOpts, defaults, eris.Errorf("delimiter must be a single character, got %q", runDelimiter)
		}
		tabOpts.Delimiter = r[0]
	}
	if runSheet != "" {
		tabOpts.Sheet = runSheet
	}
	if runCharset != "" {
		tabOpts.Charset = runCharset
	}
	if cmd.Flags().Changed("no-header") {
		tabOpts.NoHeader = runNoHeader
	}

	if mapping.Name == "" {
		return mapping, tabOpts, defaults, eris.New("a name column is required: set --name-col or use a profile")
	}
	return mapping, tabOpts, defaults, nil
}

// progressLogEvery caps per-record progress logging so large imports do not
// flood the log.
const progressLogEvery = 25

// progressLogger returns a progress callback that logs every phase change and
// record counts at most every progressLogEvery records. Phase-boundary
// snapshots carry no label, which separates them from the per-record
// geocode/persist alternation.
func progressLogger() pipeline.ProgressFunc {
	var lastPhase model.Phase
	lastLogged := -1
	return func(p model.RunProgress) {
		if p.Phase != lastPhase && p.Label == "" {
			lastPhase = p.Phase
			lastLogged = -1
			zap.L().Info("run: phase",
				zap.String("phase", string(p.Phase)),
				zap.Int("total", p.Total),
			)
			return
		}
		if p.Processed > 0 && p.Processed%progressLogEvery == 0 && p.Processed != lastLogged {
			lastLogged = p.Processed
			zap.L().Info("run: progress",
				zap.Int("processed", p.Processed),
				zap.Int("total", p.Total),
			)
		}
	}
}

// formatRunSummary writes the final import accounting to w.
func formatRunSummary(out io.Writer, result *model.RunResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Markers added:\t%d\n", result.MarkersAdded)
	_, _ = fmt.Fprintf(w, "Duplicates skipped:\t%d\n", result.DuplicatesSkipped)
	_, _ = fmt.Fprintf(w, "Rows skipped:\t%d\n", result.RowsSkipped)
	_, _ = fmt.Fprintf(w, "Geocode failures:\t%d\n", result.GeocodeFailures)
	if result.Cancelled {
		_, _ = fmt.Fprintln(w, "Cancelled:\tyes")
	}
	if result.Bounds != nil {
		_, _ = fmt.Fprintf(w, "Bounds:\t%.5f,%.5f to %.5f,%.5f\n",
			result.Bounds.MinLat, result.Bounds.MinLng,
			result.Bounds.MaxLat, result.Bounds.MaxLng,
		)
	}
	_ = w.Flush()

	for _, e := range result.Errors {
		_, _ = fmt.Fprintf(out, "Error: %s\n", e)
	}
	formatSkipped(out, result.Skipped)
}

// formatPreview writes what a dry run would have done to w. The duplicate
// count covers the file only; duplicates against markers already on the map
// need a store snapshot.
func formatPreview(out io.Writer, p *pipeline.PreviewResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Would import:\t%d\n", p.Candidates)
	_, _ = fmt.Fprintf(w, "Duplicates in file:\t%d\n", p.Duplicates)
	_, _ = fmt.Fprintf(w, "Need geocoding:\t%d\n", p.NeedsGeocoding)
	_ = w.Flush()
	formatSkipped(out, p.Skipped)
}

// maxSkipLines caps how many skipped rows the summary lists.
const maxSkipLines = 10

func formatSkipped(out io.Writer, skipped []model.SkipRecord) {
	if len(skipped) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "Skipped rows (%d):\n", len(skipped))
	for i, s := range skipped {
		if i == maxSkipLines {
			_, _ = fmt.Fprintf(out, "  ... and %d more\n", len(skipped)-maxSkipLines)
			break
		}
		detail := s.Detail
		if detail != "" {
			detail = ": " + detail
		}
		_, _ = fmt.Fprintf(out, "  row %d: %s%s\n", s.RowIndex, s.Reason, detail)
	}
}
