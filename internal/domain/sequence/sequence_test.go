package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter_Advance(t *testing.T) {
	c := &Counter{Purpose: PurposeBill, Count: 10}

	r, err := c.Advance(3)
	require.NoError(t, err)
	assert.Equal(t, Range{Start: 11, End: 13}, r)
	assert.Equal(t, []int64{11, 12, 13}, r.Numbers())
	assert.Equal(t, int64(13), c.Count)

	r2, err := c.Advance(1)
	require.NoError(t, err)
	assert.Equal(t, int64(14), r2.Start)

	_, err = c.Advance(0)
	assert.Error(t, err)
	assert.Equal(t, int64(14), c.Count)
}

func TestFormatter_FinancialYear(t *testing.T) {
	f := DefaultFormatter()

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"april starts new year", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), "2026-27"},
		{"march belongs to previous", time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), "2025-26"},
		{"century rollover", time.Date(2099, 12, 1, 0, 0, 0, 0, time.UTC), "2099-00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.FinancialYear(tt.at))
		})
	}

	calendar := Formatter{FYStartMonth: time.January, Width: 4}
	assert.Equal(t, "2026", calendar.FinancialYear(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestFormatter_Format(t *testing.T) {
	f := DefaultFormatter()
	at := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "BILL/2026-27/000123", f.Format(PurposeBill, at, 123))
	assert.Equal(t, []string{"VCH/2026-27/000009", "VCH/2026-27/000010"},
		f.FormatRange(PurposeVoucher, at, Range{Start: 9, End: 10}))
	assert.Empty(t, f.FormatRange(PurposeBill, at, Range{Start: 5, End: 4}))
}

func TestPurpose_IsValid(t *testing.T) {
	assert.True(t, PurposeBill.IsValid())
	assert.True(t, PurposeTransaction.IsValid())
	assert.False(t, Purpose("RCPT").IsValid())
}
