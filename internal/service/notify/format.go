package notify

import (
	"fmt"
	"strings"

	"TradeOrdu/internal/domain/models"

	"github.com/shopspring/decimal"
)

// FormatReport renders a report as a Telegram Markdown message. At most
// maxAgents agent lines are listed.
func FormatReport(r models.Report, maxAgents int) string {
	d, p := r.Decision, r.Proposal

	var b strings.Builder
	b.WriteString("*[TRADE ORDU SIGNAL]*\n")
	fmt.Fprintf(&b, "Pair: %s\n", escape(d.Symbol))
	fmt.Fprintf(&b, "Direction: %s | Strategy: %s | Size: %s\n",
		strings.ToUpper(string(d.Direction)), strings.ToUpper(string(p.Class)), fixed(p.Size, 2))
	fmt.Fprintf(&b, "Stop: %s | Take profit: %s", fixed(p.Stop, 4), fixed(p.Target, 4))
	if r.Price > 0 {
		fmt.Fprintf(&b, " | Price: %s", decimal.NewFromFloat(r.Price).String())
	}
	b.WriteString("\n")
	safe := "❌"
	if d.Safe {
		safe = "✅"
	}
	fmt.Fprintf(&b, "Edge: %s | Consensus: %s | Safe: %s\n\n",
		fixed(d.Edge, 2), fixed(d.Consensus, 2), safe)

	fmt.Fprintf(&b, "Reason:\n%s\n", escape(d.Explanation))
	if d.RiskExplanation != "" {
		fmt.Fprintf(&b, "\nRisk: %s\n", escape(d.RiskExplanation))
	}
	if len(r.Patterns) > 0 {
		fmt.Fprintf(&b, "Patterns: %s\n", escape(strings.Join(r.Patterns, ", ")))
	}

	b.WriteString("\n--- Agents ---\n")
	results := d.Results
	if maxAgents > 0 && len(results) > maxAgents {
		results = results[:maxAgents]
	}
	for _, res := range results {
		fmt.Fprintf(&b, "▶️ %s: %s | %s\n", escape(res.Agent), signed(res.Score), escape(res.Explanation))
	}
	return b.String()
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func signed(v float64) string {
	s := fixed(v, 2)
	if v >= 0 {
		return "+" + s
	}
	return s
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escape protects free text from legacy Markdown parsing.
func escape(s string) string { return markdownEscaper.Replace(s) }
