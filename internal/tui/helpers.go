package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// formatHours renders decimal hours to the nearest minute, e.g. "1h 30m"
func formatHours(hours decimal.Decimal) string {
	minutes := hours.Mul(decimal.NewFromInt(60)).Round(0).IntPart()
	switch h, m := minutes/60, minutes%60; {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

// formatMoney renders dollars with thousands separators, e.g. "$1,234.50"
func formatMoney(amount decimal.Decimal) string {
	whole, cents, _ := strings.Cut(amount.Abs().StringFixed(2), ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i := 0; i < len(whole); i++ {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(whole[i])
	}
	b.WriteString("." + cents)
	return b.String()
}

func formatClock(d time.Duration) string {
	d = d.Truncate(time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// truncateStr shortens s to n runes, ending in "..." when there is room
func truncateStr(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// weekMonday returns the Monday starting the week of a civil date
func weekMonday(d time.Time) time.Time {
	return d.AddDate(0, 0, -((int(d.Weekday()) + 6) % 7))
}
