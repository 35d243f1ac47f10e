package domain

import (
	"github.com/shopspring/decimal"
)

// DefaultHourlyRate is the rate used when nothing in the chain defines one
var DefaultHourlyRate = decimal.NewFromInt(175)

// RateChain holds the candidate rates for a unit of work, highest precedence first
type RateChain struct {
	Explicit      decimal.NullDecimal
	Project       decimal.NullDecimal
	ClientBilling decimal.NullDecimal
	ClientDefault decimal.NullDecimal
}

// ResolveRate returns the first defined rate in precedence order:
// explicit > project > client billing > client default > DefaultHourlyRate.
func ResolveRate(c RateChain) decimal.Decimal {
	if r := c.First(); r.Valid {
		return r.Decimal
	}
	return DefaultHourlyRate
}

// First returns the first defined rate in the chain, without the global default
func (c RateChain) First() decimal.NullDecimal {
	for _, r := range []decimal.NullDecimal{c.Explicit, c.Project, c.ClientBilling, c.ClientDefault} {
		if r.Valid {
			return r
		}
	}
	return decimal.NullDecimal{}
}

// ClientLevelRate returns the client's own rate, if it defines one
func ClientLevelRate(client *Client) decimal.NullDecimal {
	return ChainFor(nil, client).First()
}

// ChainFor builds the rate chain for a project and its client
func ChainFor(project *Project, client *Client) RateChain {
	var c RateChain
	if project != nil {
		c.Project = project.HourlyRate
	}
	if client != nil {
		c.ClientBilling = client.BillingRate
		c.ClientDefault = client.DefaultRate
	}
	return c
}

// Rate is either pending resolution or fixed to a value.
// The zero value is pending.
type Rate struct {
	value    decimal.Decimal
	resolved bool
}

// PendingRate returns a rate that must be resolved through the chain
func PendingRate() Rate {
	return Rate{}
}

// FixedRate returns an explicitly chosen rate
func FixedRate(d decimal.Decimal) Rate {
	return Rate{value: d, resolved: true}
}

// IsFixed reports whether the rate was explicitly chosen
func (r Rate) IsFixed() bool {
	return r.resolved
}

// Value returns the fixed value, if any
func (r Rate) Value() (decimal.Decimal, bool) {
	return r.value, r.resolved
}

// Resolve returns the fixed value, or walks the chain with this rate as the explicit override
func (r Rate) Resolve(c RateChain) decimal.Decimal {
	if r.resolved {
		c.Explicit = decimal.NewNullDecimal(r.value)
	}
	return ResolveRate(c)
}

// Validate rejects negative fixed rates
func (r Rate) Validate() error {
	if r.resolved && r.value.IsNegative() {
		return Invalid("rate", "rate cannot be negative")
	}
	return nil
}

// RateFor returns amount/hours with the fewest decimal places (at least
// two) for which hours × rate rounds back to amount at cents
func RateFor(amount, hours decimal.Decimal) decimal.Decimal {
	if !hours.IsPositive() {
		return decimal.Zero
	}
	target := amount.Round(2)
	exact := amount.Div(hours)
	for places := int32(2); places <= int32(decimal.DivisionPrecision); places++ {
		rate := exact.Round(places)
		if hours.Mul(rate).Round(2).Equal(target) {
			return rate
		}
	}
	return exact
}
