package availability

import (
	"testing"
	"time"

	"snackstand/backend/internal/domain"
)

func window(start, end string) *domain.AvailabilityWindow {
	return &domain.AvailabilityWindow{Start: start, End: end}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{" 12:00 ", 720, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"12", 0, true},
		{"ab:cd", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNoWindowsAlwaysAvailable(t *testing.T) {
	p := domain.Product{Name: "water"}
	for _, minute := range []int{0, 720, 1439} {
		if !AvailableAt(p, minute) {
			t.Fatalf("product without windows should be available at minute %d", minute)
		}
	}
}

func TestSingleWindowInclusiveBounds(t *testing.T) {
	p := domain.Product{FirstWindow: window("09:00", "11:30")}

	cases := []struct {
		minute int
		want   bool
	}{
		{539, false}, // 08:59
		{540, true},  // 09:00 start inclusive
		{600, true},
		{690, true},  // 11:30 end inclusive
		{691, false}, // 11:31
	}
	for _, tc := range cases {
		if got := AvailableAt(p, tc.minute); got != tc.want {
			t.Errorf("minute %d: got %v, want %v", tc.minute, got, tc.want)
		}
	}
}

func TestTwoWindowsOrSemantics(t *testing.T) {
	p := domain.Product{
		FirstWindow:  window("08:00", "10:00"),
		SecondWindow: window("14:00", "16:00"),
	}

	if !AvailableAt(p, 9*60) {
		t.Fatal("expected available inside first window")
	}
	if !AvailableAt(p, 15*60) {
		t.Fatal("expected available inside second window")
	}
	if AvailableAt(p, 12*60) {
		t.Fatal("expected unavailable between windows")
	}
}

func TestHalfConfiguredWindowIgnored(t *testing.T) {
	p := domain.Product{FirstWindow: window("09:00", "")}
	if !AvailableAt(p, 0) {
		t.Fatal("half-configured window should not restrict sale")
	}

	p = domain.Product{
		FirstWindow:  window("", "11:00"),
		SecondWindow: window("14:00", "16:00"),
	}
	if AvailableAt(p, 9*60) {
		t.Fatal("half-configured first window must not grant availability")
	}
	if !AvailableAt(p, 15*60) {
		t.Fatal("second window should still apply")
	}
}

func TestMisorderedWindowNeverMatches(t *testing.T) {
	p := domain.Product{FirstWindow: window("18:00", "06:00")}
	for _, minute := range []int{0, 5 * 60, 12 * 60, 19 * 60, 23*60 + 59} {
		if AvailableAt(p, minute) {
			t.Fatalf("misordered window matched minute %d", minute)
		}
	}
}

func TestAvailableUsesLocalClock(t *testing.T) {
	p := domain.Product{FirstWindow: window("09:00", "17:00")}
	at := time.Date(2026, 3, 10, 10, 15, 0, 0, time.Local)
	if !Available(p, at) {
		t.Fatal("expected available at 10:15 local")
	}
	at = time.Date(2026, 3, 10, 8, 59, 59, 0, time.Local)
	if Available(p, at) {
		t.Fatal("expected unavailable at 08:59 local")
	}
}

func TestValidateWindows(t *testing.T) {
	warnings, err := ValidateWindows(window("09:00", "11:00"), nil)
	if err != nil || len(warnings) != 0 {
		t.Fatalf("well-formed window: warnings=%v err=%v", warnings, err)
	}

	warnings, err = ValidateWindows(window("18:00", "06:00"), nil)
	if err != nil {
		t.Fatalf("misordered window should not error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}

	warnings, err = ValidateWindows(window("09:00", ""), window("25:00", "26:00"))
	if err == nil {
		t.Fatal("malformed clock should error")
	}
	_ = warnings

	warnings, err = ValidateWindows(nil, window("", ""))
	if err != nil || len(warnings) != 0 {
		t.Fatalf("empty window pair should be accepted: warnings=%v err=%v", warnings, err)
	}
}
