package tui

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andy/timeledger/internal/domain"
)

func TestClientFormPatch(t *testing.T) {
	patch, err := clientFormPatch(" Acme ", "$150", "ap@acme.test", "")
	require.NoError(t, err)
	require.NotNil(t, patch.Name)
	assert.Equal(t, "Acme", *patch.Name)
	assert.True(t, patch.BillingRate.Set)
	assert.False(t, patch.BillingRate.Null)
	assert.True(t, patch.BillingRate.Value.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "ap@acme.test", *patch.InvoiceEmail)

	// A blank rate clears the billing rate
	patch, err = clientFormPatch("Acme", "  ", "", "")
	require.NoError(t, err)
	assert.True(t, patch.BillingRate.Null)
}

func TestClientFormPatch_Invalid(t *testing.T) {
	_, err := clientFormPatch("   ", "150", "", "")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = clientFormPatch("Acme", "lots", "", "")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = clientFormPatch("Acme", "-5", "", "")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestBarWidth(t *testing.T) {
	peak := decimal.NewFromInt(1000)
	assert.Equal(t, 30, barWidth(peak, peak, 30))
	assert.Equal(t, 15, barWidth(decimal.NewFromInt(500), peak, 30))
	assert.Equal(t, 0, barWidth(decimal.Zero, peak, 30))
	assert.Equal(t, 0, barWidth(decimal.NewFromInt(10), decimal.Zero, 30))
	assert.Equal(t, 30, barWidth(decimal.NewFromInt(2000), peak, 30))
}

func TestStatusBadges(t *testing.T) {
	assert.Contains(t, statusBadge(domain.InvoiceStatusCancelled), "CANCELLED")
	assert.Contains(t, paymentBadge(domain.PaymentStatusPartial), "PARTIAL")
	assert.Equal(t, "weird", paymentBadge(domain.PaymentStatus("weird")))
}
