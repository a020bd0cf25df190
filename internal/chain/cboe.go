package chain

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CBOE delayed-quote CSV layout: a free-form preamble carrying the
// underlying quote ("Last:", "Bid:", "Ask:", "Date:"), then a header row
// starting with "Expiration Date" where call columns sit left of the
// shared "Strike" column and put columns right of it.

var (
	lastRe = regexp.MustCompile(`Last:\s*([\d,]+\.?\d*)`)
	bidRe  = regexp.MustCompile(`Bid:\s*([\d,]+\.?\d*)`)
	askRe  = regexp.MustCompile(`Ask:\s*([\d,]+\.?\d*)`)
	dateRe = regexp.MustCompile(`Date:\s*(.*?)(?:,Bid|,Ask|GMT|$)`)
)

// expiration format used by CBOE exports, e.g. "Fri Dec 19 2025"
const expirationLayout = "Mon Jan 02 2006"

// ParseCBOE reads a CBOE options chain CSV and builds a validated
// Snapshot. Spot is taken from "Last:" when present, otherwise the
// bid/ask midpoint. Rows with zero open interest or an already passed
// expiration are dropped, matching the upstream preprocessing.
func ParseCBOE(r io.Reader, logger *zap.Logger) (*Snapshot, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	lines := strings.Split(string(raw), "\n")

	// Join the preamble so quotes split across lines still match.
	n := len(lines)
	if n > 15 {
		n = 15
	}
	preamble := strings.Join(lines[:n], " ")

	spot, err := extractSpot(preamble)
	if err != nil {
		return nil, err
	}

	asOf := extractAsOf(preamble)
	if asOf.IsZero() {
		asOf = time.Now().UTC()
		logger.Warn("no snapshot date in header, using current time")
	}

	headerIdx := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "Expiration Date") {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("no 'Expiration Date' header row found")
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx:], "\n")))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV body: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV body has no data rows")
	}

	header := records[0]
	strikeIdx := -1
	for i, col := range header {
		if strings.TrimSpace(col) == "Strike" {
			strikeIdx = i
			break
		}
	}
	if strikeIdx < 0 {
		return nil, fmt.Errorf("no 'Strike' column found")
	}

	callCols := columnIndex(header[:strikeIdx], 0)
	putCols := columnIndex(header[strikeIdx+1:], strikeIdx+1)

	asOfDay := truncateDay(asOf)
	var contracts []Contract
	var skipped int

	for lineNo, row := range records[1:] {
		if len(row) <= strikeIdx || strings.TrimSpace(row[0]) == "" {
			continue
		}

		expiration, err := time.Parse(expirationLayout, strings.TrimSpace(row[0]))
		if err != nil {
			logger.Warn("unparseable expiration, skipping row",
				zap.Int("line", headerIdx+lineNo+2),
				zap.String("value", row[0]),
			)
			skipped++
			continue
		}

		strike, ok := parseNumber(row[strikeIdx])
		if !ok || strike <= 0 {
			skipped++
			continue
		}

		if expiration.Before(asOfDay) {
			continue
		}

		for _, side := range []struct {
			typ  OptionType
			cols map[string]int
		}{
			{Call, callCols},
			{Put, putCols},
		} {
			c, ok := buildContract(row, side.cols, strike, expiration, side.typ)
			if !ok {
				continue
			}
			if c.OpenInterest <= 0 {
				continue
			}
			contracts = append(contracts, c)
		}
	}

	if skipped > 0 {
		logger.Warn("skipped malformed rows", zap.Int("count", skipped))
	}
	if len(contracts) == 0 {
		return nil, fmt.Errorf("no usable contract rows in file")
	}

	contracts = mergeDuplicates(contracts)

	snap, err := NewSnapshot(spot, asOf, contracts)
	if err != nil {
		return nil, fmt.Errorf("building snapshot: %w", err)
	}

	logger.Info("parsed CBOE chain",
		zap.Int("contracts", snap.Len()),
		zap.Int("expirations", len(snap.Expirations())),
		zap.Float64("spot", spot),
	)
	return snap, nil
}

func extractSpot(preamble string) (float64, error) {
	if m := lastRe.FindStringSubmatch(preamble); m != nil {
		if v, ok := parseNumber(m[1]); ok && v > 0 {
			return v, nil
		}
	}
	// NDX files carry zero bid/ask but a valid Last; SPX the reverse.
	bm := bidRe.FindStringSubmatch(preamble)
	am := askRe.FindStringSubmatch(preamble)
	if bm != nil && am != nil {
		bid, bok := parseNumber(bm[1])
		ask, aok := parseNumber(am[1])
		if bok && aok && ask > 0 {
			return (bid + ask) / 2, nil
		}
	}
	return 0, fmt.Errorf("no spot price in file header")
}

func extractAsOf(preamble string) time.Time {
	m := dateRe.FindStringSubmatch(preamble)
	if m == nil {
		return time.Time{}
	}
	value := strings.TrimSpace(m[1])
	for _, layout := range []string{
		"January 2 2006",
		"January 2, 2006",
		"2006-01-02",
		"Jan 2 2006",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// columnIndex maps trimmed column names to absolute row indexes. CBOE
// repeats put-side names with a ".1"-style suffix in some exports.
func columnIndex(cols []string, offset int) map[string]int {
	out := make(map[string]int, len(cols))
	for i, col := range cols {
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(col), ".1"))
		if name == "" {
			continue
		}
		if _, exists := out[name]; !exists {
			out[name] = offset + i
		}
	}
	return out
}

func buildContract(row []string, cols map[string]int, strike float64, expiration time.Time, typ OptionType) (Contract, bool) {
	if len(cols) == 0 {
		return Contract{}, false
	}

	c := Contract{
		Strike:     strike,
		Expiration: expiration,
		Type:       typ,
	}

	if v, ok := field(row, cols, "Open Interest"); ok {
		c.OpenInterest = int64(v)
	}
	if v, ok := field(row, cols, "Volume"); ok {
		c.Volume = int64(v)
	}
	if v, ok := field(row, cols, "Bid"); ok && v >= 0 {
		c.Bid = v
	}
	if v, ok := field(row, cols, "Ask"); ok && v >= 0 {
		c.Ask = v
	}
	if v, ok := field(row, cols, "IV"); ok && v > 0 {
		c.IV = Ptr(v)
	}
	if v, ok := field(row, cols, "Gamma"); ok {
		c.Gamma = Ptr(v)
	}
	if v, ok := field(row, cols, "Delta"); ok {
		c.Delta = Ptr(v)
	}
	return c, true
}

func field(row []string, cols map[string]int, name string) (float64, bool) {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return 0, false
	}
	return parseNumber(row[idx])
}

// mergeDuplicates folds rows sharing (expiration, strike, type) into
// one, summing OI and volume. SPX exports list standard and weekly
// series side by side at the same strike; the analytics care about
// aggregate positioning, not the series symbol.
func mergeDuplicates(contracts []Contract) []Contract {
	index := make(map[string]int, len(contracts))
	out := make([]Contract, 0, len(contracts))
	for _, c := range contracts {
		key := fmt.Sprintf("%s|%.6f|%s", c.Expiration.Format("2006-01-02"), c.Strike, c.Type)
		if i, ok := index[key]; ok {
			out[i].OpenInterest += c.OpenInterest
			out[i].Volume += c.Volume
			if out[i].IV == nil {
				out[i].IV = c.IV
			}
			if out[i].Gamma == nil {
				out[i].Gamma = c.Gamma
			}
			if out[i].Delta == nil {
				out[i].Delta = c.Delta
			}
			continue
		}
		index[key] = len(out)
		out = append(out, c)
	}
	return out
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
