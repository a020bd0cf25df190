package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kriterionquant/chainscope/internal/chain"
)

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert INPUT OUTPUT",
		Short: "Convert a CBOE CSV into a snapshot archive",
		Long: `Convert a CBOE delayed-quote CSV export into the JSONL snapshot
archive read by the server and analyze commands. An output path ending
in .zst is compressed with zstd.

Examples:
  chainscope convert spx_quotedata.csv spx_2026-01-06.jsonl
  chainscope convert spx_quotedata.csv spx_2026-01-06.jsonl.zst`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, output := args[0], args[1]

			if !isArchivePath(output) {
				return fmt.Errorf("output must end in .jsonl or .jsonl.zst, got %s", output)
			}

			snap, err := loadSnapshot(input)
			if err != nil {
				return err
			}

			if err := chain.WriteArchive(output, snap); err != nil {
				return fmt.Errorf("writing archive: %w", err)
			}

			logger.Info("archive written",
				zap.String("file", output),
				zap.Int("contracts", snap.Len()),
				zap.Int("expirations", len(snap.Expirations())),
				zap.Float64("spot", snap.Spot()),
			)
			return nil
		},
	}

	return cmd
}

func isArchivePath(path string) bool {
	return strings.HasSuffix(path, ".jsonl") || strings.HasSuffix(path, ".jsonl.zst")
}
