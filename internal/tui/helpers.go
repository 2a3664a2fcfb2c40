package tui

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var sixty = decimal.NewFromInt(60)

// formatHours formats hours as "Xh Ym"
func formatHours(hours decimal.Decimal) string {
	minutes := hours.Mul(sixty).Round(0).IntPart()
	h, m := minutes/60, minutes%60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// formatMoney formats money with the currency code and comma separators, e.g. "USD 1,234.50"
func formatMoney(amount decimal.Decimal, currency string) string {
	negative := amount.IsNegative()
	s := amount.Abs().StringFixed(2)

	dotPos := len(s) - 3
	intPart := s[:dotPos]
	decPart := s[dotPos:]

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}

	prefix := ""
	if currency != "" {
		prefix = currency + " "
	}
	if negative {
		prefix += "-"
	}
	return prefix + b.String() + decPart
}

// formatPercent renders a percentage with two decimals
func formatPercent(p decimal.Decimal) string {
	return p.StringFixed(2) + "%"
}

// truncateStr truncates a string to the specified length with ellipsis
func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
