package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBillingDate(t *testing.T) {
	tests := []struct {
		name    string
		start   time.Time
		cycle   BillingCycleType
		want    time.Time
		wantErr bool
	}{
		{
			name:  "daily",
			start: time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC),
			cycle: BillingCycleDaily,
			want:  time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "weekly across year",
			start: time.Date(2024, time.December, 29, 10, 0, 0, 0, time.UTC),
			cycle: BillingCycleWeekly,
			want:  time.Date(2025, time.January, 5, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "monthly clamps to leap february",
			start: time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
			cycle: BillingCycleMonthly,
			want:  time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "monthly clamps to non leap february",
			start: time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC),
			cycle: BillingCycleMonthly,
			want:  time.Date(2023, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "quarterly across year",
			start: time.Date(2024, time.November, 30, 0, 0, 0, 0, time.UTC),
			cycle: BillingCycleQuarterly,
			want:  time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "semi annually",
			start: time.Date(2024, time.August, 31, 0, 0, 0, 0, time.UTC),
			cycle: BillingCycleSemiAnnually,
			want:  time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "annually from leap day",
			start: time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
			cycle: BillingCycleAnnually,
			want:  time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "unknown cycle",
			start:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			cycle:   BillingCycleType("fortnightly"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextBillingDate(tt.start, tt.cycle)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestMinorUnits(t *testing.T) {
	amount := RoundAmount(mustDecimal(t, "123.455"))
	assert.Equal(t, "123.46", amount.StringFixed(2))
	assert.Equal(t, int64(12346), ToMinorUnits(amount, "usd"))
	assert.Equal(t, int64(123), ToMinorUnits(amount, "JPY"))
	assert.Equal(t, "123.46", FromMinorUnits(12346, "USD").StringFixed(2))
	assert.Equal(t, "500", FromMinorUnits(500, "JPY").String())
}

func TestJurisdictionValidate(t *testing.T) {
	state := "ca"
	j := Jurisdiction{Country: "us", State: &state}
	require.NoError(t, j.Validate())
	assert.Equal(t, "US-CA", j.Normalize().Code())

	bad := "CALIF"
	assert.Error(t, Jurisdiction{Country: "US", State: &bad}.Validate())
	assert.Error(t, Jurisdiction{Country: "USA"}.Validate())
	assert.Equal(t, "DE", Jurisdiction{Country: "DE"}.Code())
}
