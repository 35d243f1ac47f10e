package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/andy/timeledger/internal/domain"
)

// parseID parses a positional ID argument
func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %q", kind, s)
	}
	return id, nil
}

// decimalFlag reads a string flag holding a decimal. ok is false when the
// flag was not given.
func decimalFlag(cmd *cobra.Command, name string) (d decimal.Decimal, ok bool, err error) {
	if !cmd.Flags().Changed(name) {
		return decimal.Zero, false, nil
	}
	raw, _ := cmd.Flags().GetString(name)
	d, err = decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid --%s: %q", name, raw)
	}
	return d, true, nil
}

// nullableDecimalFlag maps a decimal flag onto a patch field. The value
// "none" clears the field.
func nullableDecimalFlag(cmd *cobra.Command, name string) (domain.Nullable[decimal.Decimal], error) {
	if !cmd.Flags().Changed(name) {
		return domain.Nullable[decimal.Decimal]{}, nil
	}
	if raw, _ := cmd.Flags().GetString(name); strings.EqualFold(raw, "none") {
		return domain.SetNull[decimal.Decimal](), nil
	}
	d, _, err := decimalFlag(cmd, name)
	if err != nil {
		return domain.Nullable[decimal.Decimal]{}, err
	}
	return domain.SetTo(d), nil
}

// stringFlag returns a pointer to the flag value when it was given
func stringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

// int64Flag returns a pointer to the flag value when it was given
func int64Flag(cmd *cobra.Command, name string) *int64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetInt64(name)
	return &v
}

// dateFlag parses an optional date flag
func dateFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	raw, _ := cmd.Flags().GetString(name)
	d, err := parseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return &d, nil
}

// money formats an amount for tables
func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// optionalMoney formats a nullable rate, or a dash when unset
func optionalMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return money(d.Decimal)
}
