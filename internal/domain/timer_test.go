package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoursFromSeconds(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{-5, "0"},
		{0, "0"},
		{1, "0.1"},
		{359, "0.1"},
		{360, "0.1"},
		{361, "0.2"},
		{1800, "0.5"},
		{3599, "1"},
		{3600, "1"},
		{3601, "1.1"},
		{7200, "2"},
		{7201, "2.1"},
	}

	for _, tt := range tests {
		got := HoursFromSeconds(tt.seconds)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%ds: got %s want %s", tt.seconds, got, tt.want)
	}
}

func TestHoursFromSeconds_NeverRoundsDown(t *testing.T) {
	for s := int64(1); s <= 7300; s++ {
		h := HoursFromSeconds(s)
		assert.True(t, h.GreaterThanOrEqual(decimal.New(1, -1)))
		assert.True(t, h.Mul(decimal.NewFromInt(3600)).GreaterThanOrEqual(decimal.NewFromInt(s)), "%ds -> %s", s, h)
	}
}

func TestTimer_PauseIsIdempotent(t *testing.T) {
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	e := NewTimerEntry(1, 2, "design review", start)
	assert.Equal(t, TimerStateRunning, e.TimerState())

	require.True(t, e.Pause(start.Add(10*time.Minute)))
	first := e.ElapsedSeconds
	assert.Equal(t, int64(600), first)
	assert.Equal(t, TimerStatePaused, e.TimerState())

	assert.False(t, e.Pause(start.Add(30*time.Minute)))
	assert.Equal(t, first, e.ElapsedSeconds)
}

func TestTimer_ResumeAndCommit(t *testing.T) {
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	e := NewTimerEntry(1, 2, "", start)

	assert.Error(t, e.Resume(start))

	e.Pause(start.Add(20 * time.Minute))
	require.NoError(t, e.Resume(start.Add(60*time.Minute)))
	assert.Equal(t, int64(1200), e.ElapsedSeconds)
	assert.Equal(t, int64(1200+300), e.Elapsed(start.Add(65*time.Minute)))

	require.NoError(t, e.Commit(start.Add(100*time.Minute), decimal.NewFromInt(150)))
	// 20m + 40m = 3600s
	assert.Equal(t, int64(3600), e.ElapsedSeconds)
	assert.True(t, e.Hours.Equal(decimal.NewFromInt(1)))
	assert.True(t, e.Amount.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, TimerStateCommitted, e.TimerState())

	assert.ErrorIs(t, e.Commit(start.Add(120*time.Minute), decimal.NewFromInt(150)), ErrPrecondition)
}

func TestTimer_CommitWhilePaused(t *testing.T) {
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	e := NewTimerEntry(1, 2, "", start)
	e.Pause(start.Add(time.Second))

	require.NoError(t, e.Commit(start.Add(5*time.Hour), decimal.NewFromInt(100)))
	assert.True(t, e.Hours.Equal(decimal.New(1, -1)))
	assert.False(t, e.IsPaused)
}

func TestTimer_WorkDateUsesBusinessTimezone(t *testing.T) {
	// 02:30 UTC on March 11 is still March 10 in New York
	now := time.Date(2025, 3, 11, 2, 30, 0, 0, time.UTC)
	e := NewTimerEntry(1, 2, "", now)
	assert.Equal(t, "2025-03-10", FormatDate(e.WorkDate))
}

func TestTimer_DiscardedState(t *testing.T) {
	e := NewTimerEntry(1, 2, "", time.Now())
	e.IsDeleted = true
	assert.Equal(t, TimerStateDiscarded, e.TimerState())
	assert.False(t, e.IsTimerActive())
}
