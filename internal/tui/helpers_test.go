package tui

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatHours(t *testing.T) {
	assert.Equal(t, "45m", formatHours(decimal.RequireFromString("0.75")))
	assert.Equal(t, "2h", formatHours(decimal.NewFromInt(2)))
	assert.Equal(t, "1h 30m", formatHours(decimal.RequireFromString("1.5")))
	assert.Equal(t, "0m", formatHours(decimal.Zero))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$0.00", formatMoney(decimal.Zero))
	assert.Equal(t, "$1,234.50", formatMoney(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "$1,000,000.00", formatMoney(decimal.NewFromInt(1000000)))
	assert.Equal(t, "-$12.30", formatMoney(decimal.RequireFromString("-12.3")))
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "01:02:03", formatClock(time.Hour+2*time.Minute+3*time.Second))
}

func TestTruncateStr(t *testing.T) {
	assert.Equal(t, "short", truncateStr("short", 10))
	assert.Equal(t, "long te...", truncateStr("long text here", 10))
	assert.Equal(t, "ab", truncateStr("abcdef", 2))
}

func TestWeekMonday(t *testing.T) {
	sunday := time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), weekMonday(sunday))

	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, weekMonday(monday))
}

func TestScreenString(t *testing.T) {
	assert.Equal(t, "Analytics", ScreenAnalytics.String())
	assert.Equal(t, "Unknown", Screen(99).String())
}

func TestTruncateStr_Runes(t *testing.T) {
	assert.Equal(t, "Café Ü...", truncateStr("Café Über Alles", 9))
}
