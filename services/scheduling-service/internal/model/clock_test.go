package model

import "testing"

func TestParseClock(t *testing.T) {
	cases := map[string]int{
		"09:00":    540,
		"17:45":    1065,
		"17:46:00": 1066,
		"24:00":    1440,
		"00:00":    0,
	}
	for raw, want := range cases {
		got, err := ParseClock(raw)
		if err != nil {
			t.Fatalf("ParseClock(%q) failed: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseClock(%q) = %d, want %d", raw, got, want)
		}
	}

	for _, raw := range []string{"9:00", "24:01", "10:60", "10", "10:00:30", "ab:cd", "+9:00", "-1:30", "09:+5", " 9:00"} {
		if _, err := ParseClock(raw); err == nil {
			t.Fatalf("ParseClock(%q) should fail", raw)
		}
	}
}

func TestParseDateWeekday(t *testing.T) {
	d, err := ParseDate("2024-06-10")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if d.Weekday() != 1 {
		t.Fatalf("2024-06-10 should be a Monday, got %s", d.Weekday())
	}
	if FormatDate(d) != "2024-06-10" {
		t.Fatalf("unexpected format %s", FormatDate(d))
	}
	if _, err := ParseDate("10/06/2024"); err == nil {
		t.Fatal("expected error for non ISO date")
	}
}

func TestFormatClock(t *testing.T) {
	if FormatClock(1065) != "17:45" {
		t.Fatalf("unexpected %s", FormatClock(1065))
	}
}
