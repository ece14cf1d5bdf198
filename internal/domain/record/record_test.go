package record_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/reconcile-backend/internal/domain/record"
)

func TestNew(t *testing.T) {
	t.Run("builds a record with a truncated date", func(t *testing.T) {
		ts := time.Date(2024, 3, 1, 15, 42, 7, 0, time.UTC)
		rec, err := record.New(ts, "-150.00", "COFFEE SHOP", record.SourceCSV, 1.0)
		require.NoError(t, err)

		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rec.OccurredOn)
		assert.True(t, rec.Amount.Equal(decimal.RequireFromString("-150.00")))
		assert.Equal(t, record.SourceCSV, rec.Format)
	})

	t.Run("rejects unparseable amounts", func(t *testing.T) {
		_, err := record.New(time.Now(), "not-a-number", "", record.SourceCSV, 1.0)
		assert.Error(t, err)
	})

	t.Run("rejects confidence outside range", func(t *testing.T) {
		_, err := record.New(time.Now(), "1.00", "", record.SourceDocument, 1.5)
		assert.Error(t, err)
	})
}

func TestAmountMatches(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"equal", "150.00", "150.00", true},
		{"negated", "-150.00", "150.00", true},
		{"negated other side", "150.00", "-150.00", true},
		{"different", "150.00", "150.01", false},
		{"zero", "0", "0", true},
		{"trailing zeros ignored", "150.0", "150.00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := decimal.RequireFromString(tt.a)
			b := decimal.RequireFromString(tt.b)
			assert.Equal(t, tt.want, record.AmountMatches(a, b))
		})
	}
}

func TestDaysBetween(t *testing.T) {
	d1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 2, record.DaysBetween(d1, d2))
	assert.Equal(t, 2, record.DaysBetween(d2, d1))
	assert.Equal(t, 0, record.DaysBetween(d1, d1))
}
