package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kriterionquant/chainscope/internal/chain"
	"github.com/kriterionquant/chainscope/internal/fetch"
)

func fetchCmd() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch TICKER OUTPUT",
		Short: "Download the current chain snapshot for a ticker",
		Long: `Download the delayed-quote chain CSV for TICKER and write it to
OUTPUT. Index tickers carry an underscore prefix. An OUTPUT ending in
.jsonl or .jsonl.zst is parsed and written as a snapshot archive
instead of the raw CSV.

Examples:
  chainscope fetch _SPX spx_quotedata.csv
  chainscope fetch _SPX spx_today.jsonl.zst`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticker, output := args[0], args[1]

			client := fetch.NewClient(baseURL, 1, timeout, time.Second, 3, logger)

			var buf bytes.Buffer
			size, err := client.FetchChain(cmd.Context(), ticker, &buf)
			if err != nil {
				return fmt.Errorf("fetching chain for %s: %w", ticker, err)
			}
			logger.Info("chain downloaded",
				zap.String("ticker", ticker),
				zap.Int64("bytes", size),
			)

			if isArchivePath(output) {
				snap, err := chain.ParseCBOE(&buf, logger)
				if err != nil {
					return fmt.Errorf("parsing downloaded chain: %w", err)
				}
				if err := chain.WriteArchive(output, snap); err != nil {
					return fmt.Errorf("writing archive: %w", err)
				}
				logger.Info("archive written",
					zap.String("file", output),
					zap.Int("contracts", snap.Len()),
				)
				return nil
			}

			if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
				return fmt.Errorf("writing output file: %w", err)
			}
			logger.Info("file written", zap.String("file", output))
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", fetch.DefaultBaseURL, "quote server base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	return cmd
}
