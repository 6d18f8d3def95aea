// Package cmd defines the rangecrawler CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-range-crawler/internal/app"
	"github.com/JakeFAU/catalog-range-crawler/internal/config"
	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-range-crawler/internal/logging"
)

// App is the slice of *app.App the commands use. Tests inject a fake.
type App interface {
	Crawl(ctx context.Context, rc crawler.RunConfig) (crawler.RunReport, error)
	Status(ctx context.Context) (app.Status, error)
	Close() error
}

// newApp is the application factory; tests replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// cli carries state shared between the root hooks and subcommands.
type cli struct {
	configPath string
	cfg        config.Config
	logger     *zap.Logger
	app        App
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rangecrawler",
		Short: "Enumerates a catalog by numeric id and records each page title.",
		Long: `rangecrawler fetches BASE_URL+id for every id in a half-open range, extracts
the title from each page and appends it to a durable store. Ids already in the
store are skipped, so an interrupted run can simply be started again.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a config file (yaml, json or toml)")

	cmd.AddCommand(newCrawlCmd(c))
	cmd.AddCommand(newStatusCmd(c))
	return cmd
}

// setup loads config, builds the logger and the app. Flags that exist on the
// running subcommand override file and env values.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	cfg, err := config.Load(c.configPath,
		config.WithFlag("crawler.lower", flags.Lookup("lower")),
		config.WithFlag("crawler.upper", flags.Lookup("upper")),
		config.WithFlag("crawler.workers", flags.Lookup("workers")),
	)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	c.logger = logger
	zap.ReplaceGlobals(logger)

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	c.app = a
	return nil
}

func (c *cli) requireApp() (App, error) {
	if c.app == nil {
		return nil, errors.New("application services not initialized")
	}
	return c.app, nil
}

// close releases the app and flushes the logger. It runs whether or not the command failed.
func (c *cli) close() error {
	var err error
	if c.app != nil {
		err = multierr.Append(err, c.app.Close())
		c.app = nil
	}
	if c.logger != nil {
		// Sync on a console fd reports EINVAL on some platforms.
		_ = c.logger.Sync()
	}
	return err
}

// Execute runs the root command with a context canceled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	c := &cli{}
	err := newRootCmd(c).ExecuteContext(ctx)
	if cerr := c.close(); cerr != nil {
		zap.L().Warn("error closing application services", zap.Error(cerr))
	}
	stop()
	if err != nil {
		zap.L().Fatal("command execution failed", zap.Error(err))
	}
}
