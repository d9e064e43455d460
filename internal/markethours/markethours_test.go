package markethours

import (
	"strings"
	"testing"
	"time"
)

func ist(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, IST)
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday open", ist(2026, 3, 2, 9, 15), true},
		{"monday before open", ist(2026, 3, 2, 9, 14), false},
		{"monday at close", ist(2026, 3, 2, 15, 30), false},
		{"saturday", ist(2026, 3, 7, 11, 0), false},
		{"republic day", ist(2026, 1, 26, 11, 0), false},
		// 05:00 UTC is 10:30 IST
		{"utc input", time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		if got := IsMarketOpen(tc.at); got != tc.want {
			t.Errorf("%s: IsMarketOpen=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNextOpen_SkipsWeekend(t *testing.T) {
	// Friday after close → Monday 09:15
	got := NextOpen(ist(2026, 3, 6, 16, 0))
	want := ist(2026, 3, 9, 9, 15)
	if !got.Equal(want) {
		t.Errorf("NextOpen=%v, want %v", got, want)
	}
}

func TestSameSession_ComparesInIST(t *testing.T) {
	// 19:00 UTC on Mar 1 is 00:30 IST on Mar 2
	late := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	morning := ist(2026, 3, 2, 9, 30)
	if !SameSession(late, morning) {
		t.Error("expected both to be the IST session of Mar 2")
	}
	if SameSession(ist(2026, 3, 2, 15, 25), ist(2026, 3, 3, 9, 15)) {
		t.Error("consecutive days reported as same session")
	}
}

func TestTradingDaysBack(t *testing.T) {
	// Wed Mar 4 2026: five sessions back is Thu Feb 26 (weekend skipped)
	got := TradingDaysBack(ist(2026, 3, 4, 12, 0), 5)
	want := ist(2026, 2, 26, 0, 0)
	if !got.Equal(want) {
		t.Errorf("TradingDaysBack=%v, want %v", got, want)
	}

	if got := TradingDaysBack(ist(2026, 3, 4, 12, 0), 1); !got.Equal(ist(2026, 3, 4, 0, 0)) {
		t.Errorf("n=1 should be the same day, got %v", got)
	}
}

func TestStatusString(t *testing.T) {
	if s := StatusString(ist(2026, 3, 2, 10, 0)); !strings.HasPrefix(s, "Market Open") {
		t.Errorf("got %q", s)
	}
	if s := StatusString(ist(2026, 3, 7, 10, 0)); !strings.HasPrefix(s, "Market Closed - opens Mon") {
		t.Errorf("got %q", s)
	}
}

func TestTimeUntilOpen(t *testing.T) {
	// Saturday 10:00 → Monday 09:15
	sat := ist(2026, 3, 7, 10, 0)
	if got, want := TimeUntilOpen(sat), 47*time.Hour+15*time.Minute; got != want {
		t.Errorf("TimeUntilOpen=%v, want %v", got, want)
	}
	if s := StatusString(sat); s != "Market Closed - opens Mon 09:15 (47h15m)" {
		t.Errorf("got %q", s)
	}
}
