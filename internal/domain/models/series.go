package models

// PeriodPoint is one value of an equity curve. Estimated marks values that
// were interpolated rather than reported by the backtesting service.
type PeriodPoint struct {
	Period    string  `json:"period"`
	Value     float64 `json:"value"`
	Estimated bool    `json:"estimated,omitempty"`
}

// PeriodSeries is an ordered equity curve.
type PeriodSeries []PeriodPoint

// Last returns the final point of s.
func (s PeriodSeries) Last() (PeriodPoint, bool) {
	if len(s) == 0 {
		return PeriodPoint{}, false
	}
	return s[len(s)-1], true
}

// Balance is an optional currency amount.
type Balance struct {
	Value float64 `json:"value"`
	Known bool    `json:"known"`
}

// KnownBalance wraps v as a known amount.
func KnownBalance(v float64) Balance {
	return Balance{Value: v, Known: true}
}

// Leg is everything known about one comparison track.
type Leg struct {
	Series PeriodSeries `json:"series,omitempty"`
	Final  Balance      `json:"final"`
}

// Granular reports whether the leg has per-period data.
func (l Leg) Granular() bool { return len(l.Series) > 0 }

// AggregateOnly reports whether only the final balance is known.
func (l Leg) AggregateOnly() bool { return len(l.Series) == 0 && l.Final.Known }

// AlignedRow is one chart row pairing both legs.
type AlignedRow struct {
	Period    string  `json:"period"`
	Strategy  float64 `json:"strategy"`
	Benchmark float64 `json:"benchmark"`
	Estimated bool    `json:"estimated,omitempty"`
}

// AlignedSeries is the chart-ready comparison.
type AlignedSeries []AlignedRow
