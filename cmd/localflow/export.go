package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aaileenssyed/LocalFlow/export"
	"github.com/spf13/cobra"
)

func exportCmd(g *globals) *cobra.Command {
	var (
		format string
		output string
		date   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the itinerary as markdown, iCalendar, JSON-LD or GeoJSON",
		Long: `Write the installed itinerary in a format other tools understand.

Formats:
  markdown  day sheet with directions links (default)
  ics       one calendar event per stop
  jsonld    schema.org TouristTrip
  geojson   resolved stops and the route between them

Examples:
  localflow export -f ics -o day.ics --date 2026-10-17
  localflow export -f geojson > day.geojson`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			opts := export.Options{}
			if date != "" {
				day, err := time.ParseInLocation(time.DateOnly, date, time.Local)
				if err != nil {
					return fmt.Errorf("--date %q is not YYYY-MM-DD", date)
				}
				opts.Date = day
			}

			app, err := g.setup(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			it := app.engine.Current()
			if it == nil {
				return errors.New("no itinerary yet, run `localflow plan`")
			}
			opts.City = app.engine.Preferences().Location

			data, err := export.Render(it, f, opts)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatMarkdown), "Export format")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&date, "date", "", "Trip day as YYYY-MM-DD (default today)")
	return cmd
}
