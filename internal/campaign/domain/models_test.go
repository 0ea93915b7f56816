package domain

import (
	"testing"
	"time"

	"gorm.io/datatypes"
)

func TestInWindowClosedInterval(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	campaign := Campaign{StartDate: start}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before start", start.Add(-time.Second), false},
		{"at start", start, true},
		{"mid window", start.AddDate(0, 0, 30), true},
		{"at window end", start.Add(EnrollmentWindow), true},
		{"after window end", start.Add(EnrollmentWindow + time.Second), false},
	}
	for _, tc := range cases {
		if got := campaign.InWindow(tc.at); got != tc.want {
			t.Errorf("%s: InWindow(%v) = %v, want %v", tc.name, tc.at, got, tc.want)
		}
	}
}

func TestHasDiscountCodeCaseInsensitive(t *testing.T) {
	campaign := Campaign{DiscountCodes: datatypes.NewJSONSlice([]string{"Save10", "spring"})}

	if !campaign.HasDiscountCode("SAVE10") {
		t.Fatal("expected SAVE10 to match Save10")
	}
	if !campaign.HasDiscountCode("Spring") {
		t.Fatal("expected Spring to match spring")
	}
	if campaign.HasDiscountCode("WINTER") {
		t.Fatal("expected WINTER not to match")
	}
}
