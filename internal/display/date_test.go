package display

import (
	"testing"
	"time"
)

func TestNiceDate(t *testing.T) {
	// Wednesday
	now := time.Date(2024, 5, 15, 18, 30, 0, 0, time.UTC)
	cases := []struct {
		name string
		date time.Time
		want string
	}{
		{"same day", time.Date(2024, 5, 15, 0, 1, 0, 0, time.UTC), "Today"},
		{"previous day", time.Date(2024, 5, 14, 23, 59, 0, 0, time.UTC), "Yesterday"},
		// every day from two to six days back is named by its weekday
		{"two days back", time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC), "Monday"},
		{"six days back", time.Date(2024, 5, 9, 9, 0, 0, 0, time.UTC), "Thursday"},
		{"week back", time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC), "8th"},
		{"first of month", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "1st"},
		{"later this month", time.Date(2024, 5, 22, 0, 0, 0, 0, time.UTC), "22nd"},
		{"previous month", time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), "3 of April, 2024"},
		{"same month last year", time.Date(2023, 5, 15, 0, 0, 0, 0, time.UTC), "15 of May, 2023"},
		{"offset zone", time.Date(2024, 5, 15, 1, 0, 0, 0, time.FixedZone("CEST", 2*3600)), "Yesterday"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NiceDate(tc.date, now); got != tc.want {
				t.Fatalf("NiceDate(%s) = %q, want %q", tc.date, got, tc.want)
			}
		})
	}
}

func TestNiceDateAcrossMonthBoundary(t *testing.T) {
	now := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	if got := NiceDate(time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), now); got != "Thursday" {
		t.Fatalf("got %q", got)
	}
	if got := NiceDate(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), now); got != "Yesterday" {
		t.Fatalf("got %q", got)
	}
}

func TestOrdinal(t *testing.T) {
	want := map[int]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 10: "10th",
		11: "11th", 12: "12th", 13: "13th", 21: "21st", 22: "22nd",
		23: "23rd", 30: "30th", 31: "31st", 111: "111th", 101: "101st",
	}
	for n, s := range want {
		if got := Ordinal(n); got != s {
			t.Fatalf("Ordinal(%d) = %q, want %q", n, got, s)
		}
	}
}
