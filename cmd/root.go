// Package cmd defines the CLI commands for the hansard-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/hansard-crawler/internal/config"
	"github.com/JakeFAU/hansard-crawler/internal/hansard"
	"github.com/JakeFAU/hansard-crawler/internal/server"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the subcommands need from the application. Tests inject a fake.
type App interface {
	Run(ctx context.Context) error
	Scrape(ctx context.Context, req hansard.ScrapeRequest) (hansard.Job, []byte, error)
	Close(ctx context.Context) error
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfgFile string) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app, err := server.Build(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "hansard-crawler",
		Short: "Keyword search over the historic Hansard archive.",
		Long: `hansard-crawler walks the historic Hansard archive for a keyword, either
across every sitting day of a period or through one member's contributions,
and renders the matching debates as a plain-text report.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.AddCommand(newServeCmd(), newScrapeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
