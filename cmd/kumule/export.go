package main

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Kumule/internal/export"
	"github.com/MikeSquared-Agency/Kumule/internal/scoring"
)

type reportFlags struct {
	scenario string
	zone     string
	year     int
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scenario, "scenario", "", "evaluate every record for this scenario")
	cmd.Flags().StringVar(&f.zone, "zone", "", "limit to one accumulation zone")
	cmd.Flags().IntVar(&f.year, "year", 0, "reference year for project exposure")
}

func (f *reportFlags) filter(a *app) scoring.Filter {
	return scoring.Filter{Scenario: f.scenario, Zone: f.zone, CalcYear: a.calcYear(f.year)}
}

func newExportCmd(configPath *string) *cobra.Command {
	var (
		rf        reportFlags
		format    string
		all       bool
		delimiter string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write evaluated records as CSV or an HTML report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "csv" && format != "html" {
				return fmt.Errorf("unknown format %q, want csv or html", format)
			}
			delim, size := utf8.DecodeRuneInString(delimiter)
			if size == 0 || size != len(delimiter) {
				return fmt.Errorf("delimiter must be a single character")
			}

			a, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			doc, err := a.store.Load(cmd.Context())
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			filter := rf.filter(a)
			if format == "html" {
				err = export.WriteHTML(w, doc, a.engine.Aggregate(doc, filter), timeNow())
			} else {
				err = export.WriteCSV(w, export.Rows(a.engine, doc, filter, all), delim)
			}
			if err != nil {
				return fmt.Errorf("write %s: %w", format, err)
			}
			if output != "" {
				a.logger.Info("export written", "path", output, "format", format)
			}
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&format, "format", "csv", "csv or html")
	cmd.Flags().BoolVar(&all, "all", false, "list every record, not only included ones (csv)")
	cmd.Flags().StringVar(&delimiter, "delimiter", ",", "csv field separator")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}
