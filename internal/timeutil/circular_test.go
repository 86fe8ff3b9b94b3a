package timeutil

import "testing"

func TestCircularDistance_CrossesMidnight(t *testing.T) {
	a, err := ParseMinutes("23:50")
	if err != nil {
		t.Fatalf("ParseMinutes() error = %v", err)
	}
	b, err := ParseMinutes("00:10")
	if err != nil {
		t.Fatalf("ParseMinutes() error = %v", err)
	}

	if got := CircularDistance(a, b); got != 20 {
		t.Errorf("CircularDistance(23:50, 00:10) = %d, want 20", got)
	}
}

func TestCircularDistance_Symmetric(t *testing.T) {
	for a := 0; a < minutesPerDay; a += 37 {
		for b := 0; b < minutesPerDay; b += 53 {
			if CircularDistance(a, b) != CircularDistance(b, a) {
				t.Fatalf("CircularDistance(%d,%d) != CircularDistance(%d,%d)", a, b, b, a)
			}
		}
	}
}

func TestCircularDistance_BoundedByTwelveHours(t *testing.T) {
	for a := 0; a < minutesPerDay; a += 17 {
		for b := 0; b < minutesPerDay; b += 23 {
			if d := CircularDistance(a, b); d > 12*60 {
				t.Fatalf("CircularDistance(%d,%d) = %d, want <= %d", a, b, d, 12*60)
			}
		}
	}
}

func TestRangeContains_SimpleCase(t *testing.T) {
	// 09:00-17:00 contains 10:00-14:00
	if !RangeContains(9*60, 17*60, 10*60, 14*60) {
		t.Error("expected 10:00-14:00 to be contained in 09:00-17:00")
	}
	if RangeContains(10*60, 14*60, 9*60, 17*60) {
		t.Error("09:00-17:00 should not be contained in the narrower 10:00-14:00")
	}
}

func TestRangeContains_CrossesMidnight(t *testing.T) {
	// 22:00-02:00 contains 23:00-01:00
	if !RangeContains(22*60, 2*60, 23*60, 1*60) {
		t.Error("expected 23:00-01:00 to be contained in wrap-around 22:00-02:00")
	}
}

func TestFormatMinutes_RoundTrip(t *testing.T) {
	for _, s := range []string{"00:00", "09:05", "23:59"} {
		m, err := ParseMinutes(s)
		if err != nil {
			t.Fatalf("ParseMinutes(%q) error = %v", s, err)
		}
		if got := FormatMinutes(m); got != s {
			t.Errorf("FormatMinutes(ParseMinutes(%q)) = %q, want %q", s, got, s)
		}
	}
}
