package models

import (
	"time"

	"StratView/pkg/util"
)

// Variant selects which workflow a run executes.
type Variant string

const (
	VariantManual     Variant = "manual"
	VariantScreenOnly Variant = "screenOnly"
	VariantAutoTrade  Variant = "autoTrade"
)

// Timeframe is the screening horizon understood by the remote screener.
type Timeframe string

const (
	TimeframeShort  Timeframe = "short"
	TimeframeMedium Timeframe = "medium"
	TimeframeLong   Timeframe = "long"
)

// StrategyMode is the screening risk appetite.
type StrategyMode string

const (
	ModeConservative StrategyMode = "conservative"
	ModeModerate     StrategyMode = "moderate"
	ModeAggressive   StrategyMode = "aggressive"
)

// DefaultMaxStocks is used when a request leaves MaxStocks unset.
const DefaultMaxStocks = 10

// RunRequest is the immutable input of one workflow run. Build it with
// NewRunRequest; copies returned by the With* helpers never alias the
// original ticker slice.
type RunRequest struct {
	Variant      Variant      `json:"variant" validate:"required,oneof=manual screenOnly autoTrade"`
	Tickers      []string     `json:"tickers,omitempty" validate:"unique,dive,required,max=12"`
	Start        time.Time    `json:"start_date"`
	End          time.Time    `json:"end_date"`
	Capital      float64      `json:"initial_capital" validate:"gte=0"`
	Timeframe    Timeframe    `json:"timeframe,omitempty" validate:"omitempty,oneof=short medium long"`
	StrategyMode StrategyMode `json:"strategy_mode,omitempty" validate:"omitempty,oneof=conservative moderate aggressive"`
	MaxStocks    int          `json:"max_stocks" validate:"gte=1,lte=50"`
	Optimize     bool         `json:"optimize"`
}

// RunParams carries the raw, user-supplied fields of a run.
type RunParams struct {
	Variant      Variant
	Tickers      []string
	Start        time.Time
	End          time.Time
	Capital      float64
	Timeframe    Timeframe
	StrategyMode StrategyMode
	MaxStocks    int
	// Optimize defaults to true when nil.
	Optimize *bool
}

// NewRunRequest normalizes p into a RunRequest. Symbols are trimmed and
// uppercased; duplicates are kept so validation can reject them.
func NewRunRequest(p RunParams) RunRequest {
	r := RunRequest{
		Variant:      p.Variant,
		Tickers:      util.NormalizeSymbols(p.Tickers),
		Capital:      p.Capital,
		Timeframe:    p.Timeframe,
		StrategyMode: p.StrategyMode,
		MaxStocks:    p.MaxStocks,
		Optimize:     true,
	}
	if !p.Start.IsZero() {
		r.Start = dateOnly(p.Start)
	}
	if !p.End.IsZero() {
		r.End = dateOnly(p.End)
	}
	if r.MaxStocks == 0 {
		r.MaxStocks = DefaultMaxStocks
	}
	if p.Optimize != nil {
		r.Optimize = *p.Optimize
	}
	return r
}

// WithTickers returns a copy of r that trades the given symbols.
func (r RunRequest) WithTickers(symbols []string) RunRequest {
	out := r
	out.Tickers = append([]string(nil), symbols...)
	return out
}

// StartDate renders Start as YYYY-MM-DD, or "" when unset.
func (r RunRequest) StartDate() string { return util.FormatDate(r.Start) }

// EndDate renders End as YYYY-MM-DD, or "" when unset.
func (r RunRequest) EndDate() string { return util.FormatDate(r.End) }

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SelectedStock is one screening pick.
type SelectedStock struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// Symbols extracts the ticker of every pick, in order.
func Symbols(stocks []SelectedStock) []string {
	out := make([]string, 0, len(stocks))
	for _, s := range stocks {
		out = append(out, s.Symbol)
	}
	return out
}
