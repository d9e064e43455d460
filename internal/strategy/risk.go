package strategy

import (
	"fmt"
	"math"
	"time"

	"intraday-scanner/internal/model"
)

const (
	// MaxConfidence caps the confidence score.
	MaxConfidence = 99.0
	// entryBand is the half-width of the entry range as a fraction of price.
	entryBand = 0.001
	// atrFallbackPct stands in for ATR while it is still warming up.
	atrFallbackPct = 0.01
	// trendBoost is added to confidence for each confirming predicate.
	trendBoost = 10.0
)

// Levels are the priced parts of a signal.
type Levels struct {
	EntryLow   float64
	EntryHigh  float64
	StopLoss   float64
	Target     float64
	Confidence float64
}

// ComputeLevels prices a qualifying decision. It is total: an undefined ATR
// falls back to 1% of price, and an unknown tier uses the MEDIUM sizing.
func ComputeLevels(in Inputs, p Predicates, tier model.RiskTier) Levels {
	rule, ok := RuleFor(tier)
	if !ok {
		rule = rules[model.RiskMedium]
	}

	price := in.Close
	atr := in.Snap.ATR14.Or(price * atrFallbackPct)
	dist := atr * rule.ATRMultiplier

	return Levels{
		EntryLow:   price * (1 - entryBand),
		EntryHigh:  price * (1 + entryBand),
		StopLoss:   price - dist,
		Target:     price + dist*rule.RewardRatio,
		Confidence: Confidence(in.Snap.RSI14.V, p),
	}
}

// Confidence is rsi plus a boost per confirming predicate, capped at 99.
// There is no floor; rsi is already within [0, 100].
func Confidence(rsi float64, p Predicates) float64 {
	c := rsi
	if p.IsUptrend {
		c += trendBoost
	}
	if p.StrongUptrend {
		c += trendBoost
	}
	if p.VolHigh {
		c += trendBoost
	}
	return math.Min(MaxConfidence, c)
}

// BuildSignal assembles the Signal for a qualifying decision.
func BuildSignal(symbol string, in Inputs, d Decision, tier model.RiskTier, now time.Time) model.Signal {
	lv := ComputeLevels(in, d.Predicates, tier)
	rsi := in.Snap.RSI14.V
	return model.Signal{
		Symbol:      model.CleanSymbol(symbol),
		Direction:   model.DirectionBuy,
		Price:       in.Close,
		EntryLow:    lv.EntryLow,
		EntryHigh:   lv.EntryHigh,
		StopLoss:    lv.StopLoss,
		Target:      lv.Target,
		Confidence:  lv.Confidence,
		Reason:      fmt.Sprintf("%s | RSI: %.0f", d.Reason, rsi),
		RSI:         rsi,
		Risk:        tier,
		GeneratedAt: now,
	}
}
