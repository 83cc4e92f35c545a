package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tbourn/goldrate-backend/internal/services"
)

var (
	flagCities  []string
	flagDate    string
	flagEnqueue []string
	flagNoDrain bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Generate and publish city posts from stored quotes",
	Long: `Publish one post per city for a date and queue the new URLs for indexing.

With a single --city and --date only that post is published. Otherwise the
daily run publishes the latest quote for every city (default: PUBLISH_CITIES).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		if len(flagCities) == 1 && flagDate != "" {
			res, err := a.svc.Publish.PublishForDate(cmd.Context(), flagCities[0], flagDate)
			if err != nil {
				return fmt.Errorf("publish %s %s: %w", flagCities[0], flagDate, err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		}
		if flagDate != "" {
			return fmt.Errorf("--date needs exactly one --city")
		}

		cities := flagCities
		if len(cities) == 0 {
			cities = a.cfg.Scheduler.Cities
		}
		rep, err := a.svc.Publish.PublishDaily(cmd.Context(), cities)
		if perr := printJSON(cmd.OutOrStdout(), rep); perr != nil {
			return perr
		}
		return err
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Queue URLs and drain the indexing queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		for _, u := range flagEnqueue {
			e, err := a.svc.Indexing.Enqueue(cmd.Context(), u)
			if err != nil {
				return fmt.Errorf("enqueue %s: %w", u, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "queued %s (%s)\n", e.URL, e.ID)
		}
		if flagNoDrain {
			return nil
		}
		sum, err := a.svc.Indexing.ProcessAll(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sum)
	},
}

var siteFilesCmd = &cobra.Command{
	Use:   "sitefiles",
	Short: "Regenerate sitemap.xml, robots.txt, rss.xml and llms.txt",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		if err := a.svc.SiteFiles.RegenerateAll(cmd.Context()); err != nil {
			return err
		}
		for _, name := range services.SiteFileNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	publishCmd.Flags().StringSliceVar(&flagCities, "city", nil, "city to publish (repeatable)")
	publishCmd.Flags().StringVar(&flagDate, "date", "", "quote date YYYY-MM-DD (requires a single --city)")

	indexCmd.Flags().StringSliceVar(&flagEnqueue, "url", nil, "URL to queue before draining (repeatable)")
	indexCmd.Flags().BoolVar(&flagNoDrain, "no-drain", false, "only queue, do not notify the indexing API")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
