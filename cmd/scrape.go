package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

type scrapeOptions struct {
	keyword   string
	from      string
	to        string
	way       string
	person    string
	writings  bool
	requester string
	out       string
}

func newScrapeCmd() *cobra.Command {
	opts := scrapeOptions{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one search in the foreground and print the report",
		Example: `  hansard-crawler scrape --keyword budget --from 1900 --to 1901
  hansard-crawler scrape --keyword coal --from 0 --to 0 --person mr-john-bright --way in_texts --out coal.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runScrape(cmd.Context(), appInstance, opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.keyword, "keyword", "", "keyword to search for (required)")
	flags.StringVar(&opts.from, "from", "", "first year, or 0 for a member's whole career")
	flags.StringVar(&opts.to, "to", "", "last year, or 0 for a member's whole career")
	flags.StringVar(&opts.way, "way", string(hansard.WayHeaders), "in_headers or in_texts")
	flags.StringVar(&opts.person, "person", "", "member slug or people URL; empty searches sitting days")
	flags.BoolVar(&opts.writings, "writings", false, "include written answers and statements")
	flags.StringVar(&opts.requester, "requester", "cli", "requester handle recorded on the job")
	flags.StringVar(&opts.out, "out", "", "write the report to this file instead of stdout")
	_ = cmd.MarkFlagRequired("keyword")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func runScrape(ctx context.Context, app App, opts scrapeOptions, stdout io.Writer) (err error) {
	defer func() {
		if cerr := app.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()

	in := hansard.ScrapeInput{
		Keyword:   opts.keyword,
		FromDate:  opts.from,
		ToDate:    opts.to,
		Way:       opts.way,
		Writings:  opts.writings,
		Requester: opts.requester,
	}
	if opts.person != "" {
		in.PersonInfo = &opts.person
	}
	req, err := hansard.NewScrapeRequest(in)
	if err != nil {
		return err
	}

	job, body, err := app.Scrape(ctx, req)
	if err != nil {
		return fmt.Errorf("scrape job %s: %w", job.ID, err)
	}

	if opts.out == "" {
		_, err = stdout.Write(body)
		return err
	}
	if err := os.WriteFile(opts.out, body, 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	_, err = fmt.Fprintf(stdout, "%d entries written to %s\n", job.Result.Entries, opts.out)
	return err
}
