package analysis

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// amount renders a value with thousands separators and no decimals.
func amount(value float64) string {
	return message.NewPrinter(language.English).Sprintf("%.0f", value)
}

func percent(value float64) string {
	return fmt.Sprintf("%.2f%%", value)
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// MarkdownTable renders every analysed line.
func (r *Report) MarkdownTable() string {
	var b strings.Builder
	b.WriteString("| Line item | Prior year | Current year | Growth (%) | Share prior year (%) | Share current year (%) |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, line := range r.Lines {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			cell(line.Item),
			amount(line.Prior),
			amount(line.Current),
			percent(line.GrowthPct),
			percent(line.SharePriorPct),
			percent(line.ShareCurrentPct),
		)
	}
	return b.String()
}

// Summary is the analysis handed to the LLM: the full table followed by the
// key indicators.
func (r *Report) Summary() string {
	growth := "N/A"
	if r.CurrentAssetsGrowth.Valid {
		growth = percent(r.CurrentAssetsGrowth.Value)
	}

	var b strings.Builder
	b.WriteString("### Analysis table\n\n")
	b.WriteString(r.MarkdownTable())
	b.WriteString("\n### Key indicators\n\n")
	b.WriteString("| Indicator | Value |\n")
	b.WriteString("|---|---:|\n")
	fmt.Fprintf(&b, "| Current assets growth (%%) | %s |\n", growth)
	fmt.Fprintf(&b, "| Current ratio (prior year) | %s |\n", r.CurrentRatioPrior)
	fmt.Fprintf(&b, "| Current ratio (current year) | %s |\n", r.CurrentRatioCurrent)
	return b.String()
}
