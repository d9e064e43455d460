// Package strategy turns an indicator snapshot into a BUY decision and,
// for qualifying symbols, a fully priced Signal.
//
// Each risk tier is a Rule: an entry condition over the derived predicates
// plus the stop and reward multipliers that size the trade.
package strategy

import (
	"intraday-scanner/internal/indicator"
	"intraday-scanner/internal/model"
)

// ReasonWarmup is reported when the snapshot lacks the readings needed to decide.
const ReasonWarmup = "insufficient warm-up"

// Inputs is everything the evaluator looks at for one symbol: the latest
// bar's close and volume plus the indicator readings at that bar.
type Inputs struct {
	Close  float64
	Volume float64
	Snap   indicator.Snapshot
}

// InputsAt builds Inputs from the last bar of a series and its snapshot.
func InputsAt(bar model.Bar, snap indicator.Snapshot) Inputs {
	return Inputs{Close: bar.Close, Volume: bar.Volume, Snap: snap}
}

// Predicates are the boolean facts the tier rules and the confidence score use.
type Predicates struct {
	IsUptrend     bool // ema9 > ema21
	StrongUptrend bool // ema9 > ema21 > ema50
	RSIBullish    bool // rsi > 50
	RSIStrong     bool // 60 < rsi < 80
	VolHigh       bool // volume > 20-bar average
}

// Derive computes the predicates. It assumes the warm-up gate has passed.
func Derive(in Inputs) Predicates {
	s := in.Snap
	rsi := s.RSI14.V
	up := s.EMA9.V > s.EMA21.V
	return Predicates{
		IsUptrend:     up,
		StrongUptrend: up && s.EMA21.V > s.EMA50.V,
		RSIBullish:    rsi > 50,
		RSIStrong:     rsi > 60 && rsi < 80,
		VolHigh:       s.AvgVol20.OK && in.Volume > s.AvgVol20.V,
	}
}

// Decision is the evaluator's verdict for one symbol and tier.
type Decision struct {
	Qualifies  bool
	Reason     string
	Predicates Predicates
}

// Rule is one risk tier's entry condition and trade sizing.
type Rule struct {
	// Match reports whether the predicates qualify and the label to attach.
	Match func(p Predicates) (bool, string)
	// ATRMultiplier scales ATR into the stop distance.
	ATRMultiplier float64
	// RewardRatio scales the stop distance into the target distance.
	RewardRatio float64
}

var rules = map[model.RiskTier]Rule{
	model.RiskHigh: {
		Match: func(p Predicates) (bool, string) {
			if p.IsUptrend {
				return true, "Trend Following"
			}
			if p.RSIBullish {
				return true, "Momentum Play"
			}
			return false, ""
		},
		ATRMultiplier: 1.5,
		RewardRatio:   2.0,
	},
	model.RiskMedium: {
		Match: func(p Predicates) (bool, string) {
			return p.IsUptrend && (p.RSIBullish || p.VolHigh), "Trend + Momentum"
		},
		ATRMultiplier: 1.0,
		RewardRatio:   1.5,
	},
	model.RiskLow: {
		Match: func(p Predicates) (bool, string) {
			return p.StrongUptrend && p.RSIStrong && p.VolHigh, "High Conviction Setup"
		},
		ATRMultiplier: 0.8,
		RewardRatio:   1.5,
	},
}

// RuleFor returns the rule for a tier. ok is false for unrecognized tiers.
func RuleFor(tier model.RiskTier) (Rule, bool) {
	r, ok := rules[tier]
	return r, ok
}

// Ready reports whether the snapshot carries every reading the rules compare.
// ATR and average volume are optional: ATR has a price fallback and an
// undefined average simply makes VolHigh false.
func Ready(s indicator.Snapshot) bool {
	return s.RSI14.OK && s.EMA50.OK && s.EMA21.OK && s.EMA9.OK
}

// Evaluate applies the tier's rule to the inputs. Unknown tiers and
// incomplete warm-up never qualify; neither is an error.
func Evaluate(in Inputs, tier model.RiskTier) Decision {
	if !Ready(in.Snap) {
		return Decision{Reason: ReasonWarmup}
	}
	p := Derive(in)
	rule, ok := RuleFor(tier)
	if !ok {
		return Decision{Predicates: p}
	}
	qualifies, label := rule.Match(p)
	if !qualifies {
		return Decision{Predicates: p}
	}
	return Decision{Qualifies: true, Reason: label, Predicates: p}
}
