package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Line items are matched by case-insensitive substring.
const (
	TotalAssetsLabel        = "TỔNG CỘNG TÀI SẢN"
	CurrentAssetsLabel      = "TÀI SẢN NGẮN HẠN"
	CurrentLiabilitiesLabel = "NỢ NGẮN HẠN"
)

// zeroDivisor replaces a zero denominator.
const zeroDivisor = 1e-9

var ErrTotalAssetsMissing = fmt.Errorf("line item %q not found", TotalAssetsLabel)

// Line is one analysed row.
type Line struct {
	Item            string  `json:"line_item"`
	Prior           float64 `json:"prior_year"`
	Current         float64 `json:"current_year"`
	GrowthPct       float64 `json:"growth_pct"`
	SharePriorPct   float64 `json:"share_prior_pct"`
	ShareCurrentPct float64 `json:"share_current_pct"`
}

// Ratio is a figure that may be unavailable.
type Ratio struct {
	Value float64
	Valid bool
}

func Available(value float64) Ratio {
	return Ratio{Value: value, Valid: true}
}

func (r Ratio) String() string {
	if !r.Valid {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", r.Value)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

type Report struct {
	Lines               []Line   `json:"lines"`
	TotalAssetsPrior    float64  `json:"total_assets_prior"`
	TotalAssetsCurrent  float64  `json:"total_assets_current"`
	CurrentAssetsGrowth Ratio    `json:"current_assets_growth_pct"`
	CurrentRatioPrior   Ratio    `json:"current_ratio_prior"`
	CurrentRatioCurrent Ratio    `json:"current_ratio_current"`
	Warnings            []string `json:"warnings,omitempty"`
}

// Analyze computes growth and asset share per line and the current ratio
// for both years.
func Analyze(statement Statement) (*Report, error) {
	if len(statement.Rows) == 0 {
		return nil, ErrEmptyStatement
	}

	total, ok := findRow(statement.Rows, TotalAssetsLabel)
	if !ok {
		return nil, ErrTotalAssetsMissing
	}

	report := &Report{
		Lines:              make([]Line, 0, len(statement.Rows)),
		TotalAssetsPrior:   total.Prior,
		TotalAssetsCurrent: total.Current,
		Warnings:           append([]string(nil), statement.Warnings...),
	}
	for _, row := range statement.Rows {
		report.Lines = append(report.Lines, Line{
			Item:            row.Item,
			Prior:           row.Prior,
			Current:         row.Current,
			GrowthPct:       Growth(row.Prior, row.Current),
			SharePriorPct:   row.Prior / divisor(total.Prior) * 100,
			ShareCurrentPct: row.Current / divisor(total.Current) * 100,
		})
	}

	assets, assetsOK := findRow(statement.Rows, CurrentAssetsLabel)
	liabilities, liabilitiesOK := findRow(statement.Rows, CurrentLiabilitiesLabel)
	if assetsOK {
		report.CurrentAssetsGrowth = Available(Growth(assets.Prior, assets.Current))
	}
	if assetsOK && liabilitiesOK {
		report.CurrentRatioPrior = Available(assets.Prior / divisor(liabilities.Prior))
		report.CurrentRatioCurrent = Available(assets.Current / divisor(liabilities.Current))
	} else {
		report.Warnings = append(report.Warnings, fmt.Sprintf("line items %q or %q missing, current ratio not computed", CurrentAssetsLabel, CurrentLiabilitiesLabel))
	}
	return report, nil
}

// Growth is the percentage change from prior to current.
func Growth(prior, current float64) float64 {
	return (current - prior) / divisor(prior) * 100
}

func divisor(x float64) float64 {
	if x == 0 {
		return zeroDivisor
	}
	return x
}

// findRow returns the first row whose item contains label. Both sides are
// NFC normalized since spreadsheet exports mix composed and decomposed
// Vietnamese diacritics.
func findRow(rows []Row, label string) (Row, bool) {
	needle := foldLabel(label)
	for _, row := range rows {
		if strings.Contains(foldLabel(row.Item), needle) {
			return row, true
		}
	}
	return Row{}, false
}

func foldLabel(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// IsInputError reports whether err came from a bad upload rather than an
// internal failure.
func IsInputError(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrUnreadable) ||
		errors.Is(err, ErrColumnCount) ||
		errors.Is(err, ErrEmptyStatement) ||
		errors.Is(err, ErrTotalAssetsMissing)
}
