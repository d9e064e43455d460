package strategy

import (
	"math"
	"strings"
	"testing"
	"time"

	"intraday-scanner/internal/indicator"
	"intraday-scanner/internal/model"
)

func assertClose(t *testing.T, label string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s: got %.6f, want %.6f", label, got, want)
	}
}

// reference snapshot: ema9=110 ema21=100 ema50=90 rsi=65 atr=2 price=100 vol=1e6 avgVol=5e5
func referenceInputs() Inputs {
	return Inputs{
		Close:  100,
		Volume: 1_000_000,
		Snap: indicator.Snapshot{
			EMA9:     indicator.Defined(110),
			EMA21:    indicator.Defined(100),
			EMA50:    indicator.Defined(90),
			RSI14:    indicator.Defined(65),
			ATR14:    indicator.Defined(2),
			AvgVol20: indicator.Defined(500_000),
		},
	}
}

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestEvaluate_LowTierReference(t *testing.T) {
	in := referenceInputs()
	d := Evaluate(in, model.RiskLow)
	if !d.Qualifies {
		t.Fatalf("expected LOW to qualify, got %+v", d)
	}
	if d.Reason != "High Conviction Setup" {
		t.Errorf("reason=%q", d.Reason)
	}

	sig := BuildSignal("RELIANCE.NS", in, d, model.RiskLow, now)
	assertClose(t, "stop", sig.StopLoss, 98.4)
	assertClose(t, "target", sig.Target, 102.4)
	assertClose(t, "confidence", sig.Confidence, 95)
	assertClose(t, "entry low", sig.EntryLow, 99.9)
	assertClose(t, "entry high", sig.EntryHigh, 100.1)
	if sig.Symbol != "RELIANCE" {
		t.Errorf("symbol=%q, want suffix stripped", sig.Symbol)
	}
	if sig.Direction != model.DirectionBuy {
		t.Errorf("direction=%q", sig.Direction)
	}
	if sig.Reason != "High Conviction Setup | RSI: 65" {
		t.Errorf("reason=%q", sig.Reason)
	}
	if !sig.GeneratedAt.Equal(now) {
		t.Errorf("generated at %v", sig.GeneratedAt)
	}
}

func TestEvaluate_HighTierReference(t *testing.T) {
	in := referenceInputs()
	d := Evaluate(in, model.RiskHigh)
	if !d.Qualifies || d.Reason != "Trend Following" {
		t.Fatalf("got %+v", d)
	}
	sig := BuildSignal("RELIANCE", in, d, model.RiskHigh, now)
	assertClose(t, "stop", sig.StopLoss, 97.0)
	assertClose(t, "target", sig.Target, 106.0)
}

func TestEvaluate_HighTierMomentumPlay(t *testing.T) {
	in := referenceInputs()
	in.Snap.EMA9 = indicator.Defined(95) // below ema21
	d := Evaluate(in, model.RiskHigh)
	if !d.Qualifies || d.Reason != "Momentum Play" {
		t.Fatalf("got %+v", d)
	}

	in.Snap.RSI14 = indicator.Defined(45)
	if d := Evaluate(in, model.RiskHigh); d.Qualifies {
		t.Errorf("no trend and rsi<50 should not qualify: %+v", d)
	}
}

func TestEvaluate_MediumTier(t *testing.T) {
	in := referenceInputs()
	d := Evaluate(in, model.RiskMedium)
	if !d.Qualifies || d.Reason != "Trend + Momentum" {
		t.Fatalf("got %+v", d)
	}

	// uptrend with weak rsi still qualifies on volume
	in.Snap.RSI14 = indicator.Defined(40)
	if d := Evaluate(in, model.RiskMedium); !d.Qualifies {
		t.Errorf("volume should carry MEDIUM: %+v", d)
	}

	// and not without it
	in.Volume = 100
	if d := Evaluate(in, model.RiskMedium); d.Qualifies {
		t.Errorf("weak rsi and low volume should not qualify: %+v", d)
	}
}

func TestEvaluate_LowTierNeedsEveryCondition(t *testing.T) {
	mutate := map[string]func(*Inputs){
		"rsi too hot":     func(in *Inputs) { in.Snap.RSI14 = indicator.Defined(85) },
		"rsi too cool":    func(in *Inputs) { in.Snap.RSI14 = indicator.Defined(55) },
		"no strong trend": func(in *Inputs) { in.Snap.EMA50 = indicator.Defined(105) },
		"low volume":      func(in *Inputs) { in.Volume = 400_000 },
		"no avg volume":   func(in *Inputs) { in.Snap.AvgVol20 = indicator.Value{} },
	}
	for name, m := range mutate {
		in := referenceInputs()
		m(&in)
		if d := Evaluate(in, model.RiskLow); d.Qualifies {
			t.Errorf("%s: LOW should not qualify, got %+v", name, d)
		}
	}
}

func TestEvaluate_WarmupGate(t *testing.T) {
	tiers := []model.RiskTier{model.RiskHigh, model.RiskMedium, model.RiskLow}

	for _, tier := range tiers {
		in := referenceInputs()
		in.Snap.RSI14 = indicator.Value{}
		d := Evaluate(in, tier)
		if d.Qualifies || d.Reason != ReasonWarmup {
			t.Errorf("%s without RSI: %+v", tier, d)
		}

		in = referenceInputs()
		in.Snap.EMA50 = indicator.Value{}
		if d := Evaluate(in, tier); d.Qualifies {
			t.Errorf("%s without EMA50 qualified", tier)
		}
	}
}

func TestEvaluate_UnknownTier(t *testing.T) {
	d := Evaluate(referenceInputs(), model.ParseRiskTier("aggressive"))
	if d.Qualifies {
		t.Errorf("unknown tier qualified: %+v", d)
	}
}

func TestComputeLevels_ATRFallback(t *testing.T) {
	in := referenceInputs()
	in.Snap.ATR14 = indicator.Value{}
	p := Derive(in)

	// fallback distance = 1% of 100 = 1
	lv := ComputeLevels(in, p, model.RiskMedium)
	assertClose(t, "stop", lv.StopLoss, 99.0)
	assertClose(t, "target", lv.Target, 101.5)
}

func TestConfidence_Capped(t *testing.T) {
	all := Predicates{IsUptrend: true, StrongUptrend: true, VolHigh: true}
	assertClose(t, "capped", Confidence(78, all), 99)
	assertClose(t, "no boosts", Confidence(12, Predicates{}), 12)
	assertClose(t, "one boost", Confidence(40, Predicates{IsUptrend: true}), 50)
}

func TestBuildSignal_ReasonRoundsRSI(t *testing.T) {
	in := referenceInputs()
	in.Snap.RSI14 = indicator.Defined(64.6)
	d := Evaluate(in, model.RiskLow)
	sig := BuildSignal("TCS", in, d, model.RiskLow, now)
	if !strings.HasSuffix(sig.Reason, "| RSI: 65") {
		t.Errorf("reason=%q", sig.Reason)
	}
}
