package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Kumule/internal/export"
	"github.com/MikeSquared-Agency/Kumule/internal/scoring"
)

func newAggregateCmd(configPath *string) *cobra.Command {
	var (
		rf     reportFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Print EML totals per accumulation zone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			doc, err := a.store.Load(cmd.Context())
			if err != nil {
				return err
			}
			report := a.engine.Aggregate(doc, rf.filter(a))

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "Kumulesone\tObjekter\tSum forsikring\tEML PD\tEML BI\tEML total\t")
			for _, z := range report.Zones {
				writeZone(tw, z)
			}
			writeZone(tw, report.Total)
			return tw.Flush()
		},
	}
	rf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func writeZone(tw *tabwriter.Writer, z scoring.ZoneTotal) {
	fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t\n",
		z.Zone, z.Count,
		export.FormatDecimal(z.SumInsured),
		export.FormatDecimal(z.EMLPD),
		export.FormatDecimal(z.EMLBI),
		export.FormatDecimal(z.EML),
	)
}
