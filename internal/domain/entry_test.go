package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeEntry_AmountFollowsBillable(t *testing.T) {
	e := NewTimeEntry(1, 1, NewDate(2025, 1, 6), decimal.RequireFromString("2.5"), "work")
	e.SetRate(decimal.NewFromInt(150))
	assert.True(t, e.Amount.Equal(decimal.RequireFromString("375")))

	e.IsBillable = false
	e.RecomputeAmount()
	assert.True(t, e.Amount.IsZero())
}

func TestTimeEntry_Transitions(t *testing.T) {
	tests := []struct {
		from EntryStatus
		to   EntryStatus
		ok   bool
	}{
		{EntryStatusDraft, EntryStatusSubmitted, true},
		{EntryStatusDraft, EntryStatusApproved, false},
		{EntryStatusSubmitted, EntryStatusApproved, true},
		{EntryStatusSubmitted, EntryStatusRejected, true},
		{EntryStatusRejected, EntryStatusDraft, true},
		{EntryStatusApproved, EntryStatusDraft, false},
		{EntryStatusApproved, EntryStatusRejected, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			e := NewTimeEntry(1, 1, NewDate(2025, 1, 6), decimal.NewFromInt(1), "")
			e.Status = tt.from
			err := e.Transition(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, e.Status)
			} else {
				assert.ErrorIs(t, err, ErrPrecondition)
				assert.Equal(t, tt.from, e.Status)
			}
		})
	}
}

func TestTimeEntry_InvoicedIsLocked(t *testing.T) {
	e := NewTimeEntry(1, 1, NewDate(2025, 1, 6), decimal.NewFromInt(1), "")
	assert.True(t, e.CanEdit())
	assert.True(t, e.IsUnbilled())

	invoiceID := int64(7)
	e.InvoiceID = &invoiceID
	assert.False(t, e.CanEdit())
	assert.False(t, e.IsUnbilled())
	assert.ErrorIs(t, e.Transition(EntryStatusSubmitted), ErrPrecondition)
}

func TestTimeEntry_Validate(t *testing.T) {
	e := NewTimeEntry(1, 1, NewDate(2025, 1, 6), decimal.NewFromInt(1), "")
	require.NoError(t, e.Validate())

	sub := int64(3)
	e.SubcontractorID = &sub
	err := e.Validate()
	require.ErrorIs(t, err, ErrValidation)

	var v *ValidationError
	require.ErrorAs(t, err, &v)
	assert.Contains(t, v.Fields, "performer")

	end := time.Now()
	e.SubcontractorID = nil
	e.TimerEnd = &end
	assert.ErrorIs(t, e.Validate(), ErrValidation)
}

func TestValidateManualHours(t *testing.T) {
	assert.NoError(t, ValidateManualHours(decimal.RequireFromString("0.25")))
	assert.NoError(t, ValidateManualHours(decimal.NewFromInt(24)))
	assert.Error(t, ValidateManualHours(decimal.Zero))
	assert.Error(t, ValidateManualHours(decimal.RequireFromString("24.01")))
	assert.Error(t, ValidateManualHours(decimal.RequireFromString("1.125")))
}

func TestScope_Owns(t *testing.T) {
	me := int64(4)
	other := int64(5)

	s := Scope{UserID: 4}
	assert.True(t, s.Owns(&me))
	assert.False(t, s.Owns(&other))
	assert.False(t, s.Owns(nil))
	assert.True(t, AdminScope().Owns(nil))
}
