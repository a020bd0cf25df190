package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kriterionquant/chainscope/internal/analytics"
	"github.com/kriterionquant/chainscope/internal/chain"
)

type analysisReport struct {
	Spot         float64                      `json:"spot"`
	AsOf         time.Time                    `json:"as_of"`
	Expiration   string                       `json:"expiration"`
	NetGEX       float64                      `json:"net_gex"`
	SwitchPoint  *float64                     `json:"switch_point"`
	Positioning  analytics.PositioningResult  `json:"positioning"`
	MaxPain      analytics.MaxPainResult      `json:"max_pain"`
	ExpectedMove analytics.ExpectedMoveResult `json:"expected_move"`
	Surface      *surfaceSummary              `json:"surface,omitempty"`
}

// surfaceSummary reports the surface extent without dumping the grid.
type surfaceSummary struct {
	Samples      int     `json:"samples"`
	GridSize     int     `json:"grid_size"`
	MoneynessMin float64 `json:"moneyness_min"`
	MoneynessMax float64 `json:"moneyness_max"`
	DTEMin       float64 `json:"dte_min"`
	DTEMax       float64 `json:"dte_max"`
}

func analyzeCmd() *cobra.Command {
	var (
		expiration string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Compute chain analytics from a CBOE CSV or archive",
		Long: `Compute gamma exposure, positioning walls, max pain and the
expected move for one expiration of an options chain snapshot.

FILE is a CBOE delayed-quote CSV export or a .jsonl/.jsonl.zst archive
written by the convert command. Without --expiration the expiration
carrying the most open interest is analyzed.

Examples:
  chainscope analyze spx_quotedata.csv
  chainscope analyze spx_quotedata.csv --expiration 2026-03-20 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(args[0])
			if err != nil {
				return err
			}

			exp, err := resolveExpiration(snap, expiration)
			if err != nil {
				return err
			}

			params := cfg.Params()
			report := analysisReport{
				Spot:       snap.Spot(),
				AsOf:       snap.AsOf(),
				Expiration: exp.Format("2006-01-02"),
			}

			gex := analytics.GammaExposure(snap, exp, params)
			report.NetGEX = gex.NetGEX
			report.SwitchPoint = gex.SwitchPoint
			report.Positioning = analytics.Positioning(snap, exp, params)
			report.MaxPain = analytics.MaxPain(snap, exp)
			report.ExpectedMove = analytics.ExpectedMove(snap, exp)

			switch surface, err := analytics.BuildSurface(snap, params); {
			case err == nil:
				report.Surface = &surfaceSummary{
					Samples:      surface.Samples,
					GridSize:     len(surface.Moneyness),
					MoneynessMin: surface.Moneyness[0],
					MoneynessMax: surface.Moneyness[len(surface.Moneyness)-1],
					DTEMin:       surface.DTE[0],
					DTEMax:       surface.DTE[len(surface.DTE)-1],
				}
			case errors.Is(err, analytics.ErrSurfaceUnavailable):
				logger.Debug("surface unavailable for this snapshot")
			default:
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			printReport(report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&expiration, "expiration", "e", "", "expiration date YYYY-MM-DD (default: highest open interest)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the report as JSON")

	return cmd
}

func resolveExpiration(snap *chain.Snapshot, arg string) (time.Time, error) {
	if arg == "" {
		exp, ok := snap.DefaultExpiration()
		if !ok {
			return time.Time{}, fmt.Errorf("snapshot has no expirations")
		}
		return exp, nil
	}

	want, err := time.Parse("2006-01-02", arg)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiration date (use YYYY-MM-DD): %w", err)
	}
	for _, exp := range snap.Expirations() {
		if exp.Year() == want.Year() && exp.YearDay() == want.YearDay() {
			return exp, nil
		}
	}
	return time.Time{}, fmt.Errorf("expiration %s not present in snapshot", arg)
}

func printReport(r analysisReport) {
	fmt.Printf("Spot:           %.2f (as of %s)\n", r.Spot, r.AsOf.Format("2006-01-02"))
	fmt.Printf("Expiration:     %s (%d DTE)\n", r.Expiration, r.ExpectedMove.DTE)
	fmt.Printf("Net GEX:        %.0f\n", r.NetGEX)
	fmt.Printf("Gamma switch:   %s\n", fmtPtr(r.SwitchPoint, "%.2f"))
	fmt.Printf("Put wall:       %s (OI %d)\n", fmtPtr(r.Positioning.PutWall, "%.2f"), r.Positioning.PutWallOI)
	fmt.Printf("Call wall:      %s (OI %d)\n", fmtPtr(r.Positioning.CallWall, "%.2f"), r.Positioning.CallWallOI)
	fmt.Printf("P/C ratio OI:   %s\n", fmtPtr(r.Positioning.PCRatioOI, "%.3f"))
	fmt.Printf("P/C ratio vol:  %s\n", fmtPtr(r.Positioning.PCRatioVolume, "%.3f"))
	fmt.Printf("Max pain:       %s\n", fmtPtr(r.MaxPain.Strike, "%.2f"))
	fmt.Printf("ATM IV:         %s\n", fmtPtr(r.ExpectedMove.ATMIV, "%.4f"))
	fmt.Printf("Expected move:  %s\n", fmtPtr(r.ExpectedMove.ExpectedMove, "±%.2f"))
	if r.Surface != nil {
		fmt.Printf("IV surface:     %dx%d grid, %d samples, moneyness %.3f..%.3f, DTE %.0f..%.0f\n",
			r.Surface.GridSize, r.Surface.GridSize, r.Surface.Samples,
			r.Surface.MoneynessMin, r.Surface.MoneynessMax,
			r.Surface.DTEMin, r.Surface.DTEMax)
	} else {
		fmt.Println("IV surface:     unavailable (too few spread samples)")
	}
}

func fmtPtr(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}

// loadSnapshot reads a CBOE CSV or a chainscope archive by extension.
func loadSnapshot(path string) (*chain.Snapshot, error) {
	if isArchivePath(path) {
		logger.Debug("reading archive", zap.String("file", path))
		return chain.ReadArchive(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()

	return chain.ParseCBOE(f, logger)
}
