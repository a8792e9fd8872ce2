package telegram

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"pumpfun-sentinel/internal/domain"
)

// Render builds the HTML alert message for a newly claimed token.
func Render(t *domain.Token, r *domain.RiskAssessment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🚨 <b>New launch: %s</b>", html.EscapeString(t.Symbol))
	if t.Name != "" && t.Name != t.Symbol {
		fmt.Fprintf(&b, " — %s", html.EscapeString(t.Name))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "<code>%s</code>\n\n", t.Address)

	fmt.Fprintf(&b, "💰 Price: %s\n", FormatUsd(t.PriceUsd))
	fmt.Fprintf(&b, "📊 Market cap: %s\n", FormatUsd(t.MarketCapUsd))
	fmt.Fprintf(&b, "📈 1h volume: %s (%d swaps)\n", FormatUsd(t.Volume1hUsd), t.Swaps1h)
	fmt.Fprintf(&b, "👥 Holders: %d\n", t.HolderCount)
	fmt.Fprintf(&b, "🎯 Bonding curve: %.1f%%\n", t.ProgressPct)

	age := time.Duration(r.AssessedAt-t.CreatedAt) * time.Millisecond
	if age > 0 {
		fmt.Fprintf(&b, "⏱ Age: %s\n", formatAge(age))
	}

	fmt.Fprintf(&b, "\n%s <b>Risk: %s</b>\n", riskBadge(r.OverallRiskLevel), r.OverallRiskLevel)
	if r.WashTradingFlag {
		b.WriteString("• Wash trading suspected\n")
	}
	if r.CreatorBalanceRatePct > 0 {
		fmt.Fprintf(&b, "• Creator holds %.1f%%\n", r.CreatorBalanceRatePct)
	}
	if r.SniperCount > 0 {
		fmt.Fprintf(&b, "• %d snipers detected\n", r.SniperCount)
	}
	if r.Top10HolderPct > 0 {
		fmt.Fprintf(&b, "• Top 10 hold %.1f%%\n", r.Top10HolderPct)
	}

	return strings.TrimRight(b.String(), "\n")
}

func riskBadge(level domain.RiskLevel) string {
	switch level {
	case domain.RiskHigh:
		return "🔴"
	case domain.RiskMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

// FormatUsd renders a dollar amount compactly: $0.000045, $12.34,
// $3.4K, $1.2M, $5.6B.
func FormatUsd(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return "$" + trimTrailingZero(v/1e9) + "B"
	case abs >= 1e6:
		return "$" + trimTrailingZero(v/1e6) + "M"
	case abs >= 1e3:
		return "$" + trimTrailingZero(v/1e3) + "K"
	case abs >= 1:
		return fmt.Sprintf("$%.2f", v)
	case abs == 0:
		return "$0"
	default:
		return fmt.Sprintf("$%.6f", v)
	}
}

func trimTrailingZero(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
