package projection

import (
	"testing"
	"time"
)

func TestPeriodLabel(t *testing.T) {
	tests := []struct {
		now    time.Time
		period int
		want   string
	}{
		{time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC), 0, "2026-10"},
		{time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC), 3, "2027-01"},
		{time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC), 1, "2026-02"},
		{time.Date(2026, time.December, 31, 23, 0, 0, 0, time.UTC), 14, "2028-02"},
		{time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), 600, "2076-03"},
	}

	for _, tt := range tests {
		if got := PeriodLabel(tt.now, tt.period); got != tt.want {
			t.Errorf("PeriodLabel(%s, %d) = %s, want %s", tt.now.Format(time.DateOnly), tt.period, got, tt.want)
		}
	}
}
