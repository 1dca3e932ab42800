// Package cli provides the command-line interface for the signal engine.
package cli

import (
	"fmt"
	"strings"
	"time"

	"nifty-signals/pkg/marketclock"
)

// FormatIndianCurrency formats a number in Indian currency format (lakhs, crores).
func FormatIndianCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	// Format with 2 decimal places
	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")
	intPart := parts[0]
	decPart := parts[1]

	// Apply Indian numbering system
	formatted := formatIndianNumber(intPart)

	result := "₹" + formatted + "." + decPart
	if negative {
		result = "-" + result
	}
	return result
}

// formatIndianNumber formats an integer string in Indian numbering system.
// Indian system: 1,00,00,000 (1 crore) vs Western: 10,000,000
func formatIndianNumber(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	// First group of 3 from right (hundreds)
	result := s[n-3:]
	s = s[:n-3]

	// Then groups of 2 (thousands, lakhs, crores)
	for len(s) > 0 {
		if len(s) >= 2 {
			result = s[len(s)-2:] + "," + result
			s = s[:len(s)-2]
		} else {
			result = s + "," + result
			s = ""
		}
	}

	return result
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPnL formats P&L with sign.
func FormatPnL(pnl float64) string {
	formatted := FormatIndianCurrency(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatOI formats open interest in compact form.
func FormatOI(oi int64) string {
	if oi >= 10000000 { // 1 crore
		return fmt.Sprintf("%.2f Cr", float64(oi)/10000000)
	} else if oi >= 100000 { // 1 lakh
		return fmt.Sprintf("%.2f L", float64(oi)/100000)
	} else if oi >= 1000 {
		return fmt.Sprintf("%.2f K", float64(oi)/1000)
	}
	return fmt.Sprintf("%d", oi)
}

// FormatPCR formats a put-call ratio.
func FormatPCR(pcr float64) string {
	return fmt.Sprintf("%.2f", pcr)
}

// FormatStrike formats an option strike.
func FormatStrike(strike float64) string {
	return fmt.Sprintf("%.0f", strike)
}

// FormatSignalScore formats a signal score.
func FormatSignalScore(score float64) string {
	return fmt.Sprintf("%.0f", score)
}

// FormatTime formats a time in IST.
func FormatTime(t time.Time) string {
	return t.In(marketclock.IndiaLocation).Format("15:04:05")
}

// FormatDate formats a date in IST.
func FormatDate(t time.Time) string {
	return t.In(marketclock.IndiaLocation).Format("02-Jan-2006")
}

// FormatDateTime formats a datetime in IST.
func FormatDateTime(t time.Time) string {
	return t.In(marketclock.IndiaLocation).Format("02-Jan-2006 15:04:05")
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
