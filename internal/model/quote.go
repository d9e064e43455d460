package model

import "time"

// ChartPoint is one close on the intraday chart.
type ChartPoint struct {
	TS    time.Time `json:"ts"`
	Price float64   `json:"price"`
}

// Detail is the single-symbol quote view: latest close, change versus the
// previous bar, and the closes of the most recent session.
type Detail struct {
	Symbol    string       `json:"symbol"`
	LTP       float64      `json:"ltp"`
	PrevClose float64      `json:"prev_close"`
	Change    float64      `json:"change"`
	ChangePct float64      `json:"change_pct"`
	Source    string       `json:"source"`
	Chart     []ChartPoint `json:"chart"`
}
