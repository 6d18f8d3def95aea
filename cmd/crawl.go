package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
)

func newCrawlCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls every id in [lower, upper)",
		Long: `Splits [lower, upper) into one contiguous partition per worker and fetches
each id that is not already stored. Without --lower the range starts at the
largest stored id, or 1 on an empty store.`,
		RunE: c.runCrawl,
	}
	cmd.Flags().Int64("lower", 0, "inclusive lower id; 0 derives it from the store")
	cmd.Flags().Int64("upper", 0, "exclusive upper id")
	cmd.Flags().Int("workers", 0, "number of concurrent workers")
	cmd.Flags().Bool("interactive", false, "prompt for lower, upper and workers on stdin")
	return cmd
}

func (c *cli) runCrawl(cmd *cobra.Command, _ []string) error {
	a, err := c.requireApp()
	if err != nil {
		return err
	}

	interactive, err := cmd.Flags().GetBool("interactive")
	if err != nil {
		return fmt.Errorf("read interactive flag: %w", err)
	}
	var rc crawler.RunConfig
	if interactive {
		rc, err = promptRunConfig(cmd.InOrStdin(), cmd.OutOrStdout())
	} else {
		rc, err = c.cfg.RunConfig()
	}
	if err != nil {
		return err
	}

	report, err := a.Crawl(cmd.Context(), rc)
	printReport(cmd.OutOrStdout(), report, rc.Lower == nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Warn("crawl interrupted; rerun to resume")
		}
		for _, werr := range multierr.Errors(err) {
			c.logger.Error("worker failed", zap.Error(werr))
		}
		return fmt.Errorf("crawl: %w", err)
	}
	c.logger.Info("crawl command finished")
	return nil
}

func printReport(w io.Writer, r crawler.RunReport, autoLower bool) {
	if autoLower && r.Partitions != nil {
		fmt.Fprintf(w, "lower bound set automatically: %d\n", r.Lower)
	}
	fmt.Fprintf(w, "range [%d, %d) with %d workers: %d appended, %d failed workers\n",
		r.Lower, r.Upper, len(r.Workers), r.Appended(), len(r.Failed()))
	for _, wr := range r.Failed() {
		fmt.Fprintf(w, "  worker %d %s stopped after id %d: %s\n", wr.Index, wr.Partition, wr.LastID, wr.Err)
	}
	fmt.Fprintf(w, "Elapsed time: %.2f seconds\n", r.Elapsed.Seconds())
}
