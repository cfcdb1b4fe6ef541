package backtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"StratView/internal/domain/models"
)

// The decoders below never fail. Fields that are absent, null or of an
// unexpected shape are treated as unknown, so downstream code only ever sees
// models.Leg, models.Balance and friends.

// lenient holds a T when the JSON value decoded cleanly into it.
type lenient[T any] struct {
	v  T
	ok bool
}

func (l *lenient[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	l.v, l.ok = v, true
	return nil
}

func (l lenient[T]) get() (T, bool) { return l.v, l.ok }

// number accepts a JSON number or a numeric string. NaN and infinities are
// unknown.
type number struct {
	v  float64
	ok bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n.v, n.ok = v, true
	return nil
}

func (n number) balance() models.Balance {
	if !n.ok {
		return models.Balance{}
	}
	return models.KnownBalance(n.v)
}

// label accepts a string or a number as a period label.
type label string

func (l *label) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = label(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*l = label(n.String())
	}
	return nil
}

type monthlyPoint struct {
	Month   label  `json:"month"`
	Balance number `json:"balance"`
}

type monthlyPayload struct {
	points lenient[[]lenient[monthlyPoint]]
}

func (m *monthlyPayload) UnmarshalJSON(b []byte) error {
	return m.points.UnmarshalJSON(b)
}

// series keeps the points that carry a balance, in payload order.
func (m monthlyPayload) series() models.PeriodSeries {
	points, ok := m.points.get()
	if !ok {
		return nil
	}
	out := make(models.PeriodSeries, 0, len(points))
	for _, p := range points {
		if !p.ok || !p.v.Balance.ok {
			continue
		}
		name := string(p.v.Month)
		if name == "" {
			name = fmt.Sprintf("Period %d", len(out)+1)
		}
		out = append(out, models.PeriodPoint{Period: name, Value: p.v.Balance.v})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type paramsPayload struct {
	Fast   number `json:"fastperiod"`
	Slow   number `json:"slowperiod"`
	Signal number `json:"signalperiod"`
}

func macdParams(l lenient[paramsPayload]) *models.MACDParams {
	p, ok := l.get()
	if !ok || !p.Fast.ok || !p.Slow.ok || !p.Signal.ok {
		return nil
	}
	return &models.MACDParams{Fast: int(p.Fast.v), Slow: int(p.Slow.v), Signal: int(p.Signal.v)}
}

type performancePayload struct {
	BestBalance number `json:"best_balance"`
	TotalReturn number `json:"total_return"`
}

type strategyPayload struct {
	Params      lenient[paramsPayload]      `json:"optimized_parameters"`
	Performance lenient[performancePayload] `json:"optimization_performance"`
	Report      lenient[string]             `json:"backtest_result"`
	Monthly     monthlyPayload              `json:"monthly_performance"`
	Final       number                      `json:"final_balance"`
	TotalReturn number                      `json:"total_return_percent"`
}

var finalBalanceRe = regexp.MustCompile(`Final Portfolio Balance:\s*\$?\s*(-?[0-9][0-9,]*(?:\.[0-9]+)?)`)

// reportFinal extracts the last "Final Portfolio Balance: <n>" from a
// rendered backtest report.
func reportFinal(report string) models.Balance {
	m := finalBalanceRe.FindAllStringSubmatch(report, -1)
	if len(m) == 0 {
		return models.Balance{}
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[len(m)-1][1], ",", ""), 64)
	if err != nil {
		return models.Balance{}
	}
	return models.KnownBalance(v)
}

// Strategy is the normalised strategy leg plus what the summary needs.
type Strategy struct {
	Leg            models.Leg
	Params         *models.MACDParams
	TotalReturnPct *float64
	Report         string
}

func (p strategyPayload) normalise() Strategy {
	perf, _ := p.Performance.get()
	report, _ := p.Report.get()

	final := p.Final.balance()
	if !final.Known {
		final = perf.BestBalance.balance()
	}
	if !final.Known {
		final = reportFinal(report)
	}

	s := Strategy{
		Leg:    models.Leg{Series: p.Monthly.series(), Final: final},
		Params: macdParams(p.Params),
		Report: report,
	}
	switch {
	case p.TotalReturn.ok:
		v := p.TotalReturn.v
		s.TotalReturnPct = &v
	case perf.TotalReturn.ok:
		v := perf.TotalReturn.v
		s.TotalReturnPct = &v
	}
	return s
}

// DecodeStrategy normalises a strategy backtest payload.
func DecodeStrategy(body []byte) Strategy {
	var p strategyPayload
	_ = json.Unmarshal(body, &p)
	return p.normalise()
}

type benchmarkPayload struct {
	Final   number         `json:"final_balance"`
	Monthly monthlyPayload `json:"monthly_performance"`
}

// DecodeBenchmark normalises a benchmark payload.
func DecodeBenchmark(body []byte) models.Leg {
	var p benchmarkPayload
	_ = json.Unmarshal(body, &p)
	return models.Leg{Series: p.Monthly.series(), Final: p.Final.balance()}
}

type stockPayload struct {
	Symbol label  `json:"symbol"`
	Score  number `json:"score"`
	Reason label  `json:"reason"`
}

type screeningPayload struct {
	Selected lenient[[]lenient[stockPayload]] `json:"selected_stocks"`
	Fallback lenient[[]lenient[string]]       `json:"fallback_stocks"`
}

// picks returns selected stocks, or the fallback list when none were
// selected. Fallback picks have score 0 and reason "fallback".
func (p screeningPayload) picks() []models.SelectedStock {
	var out []models.SelectedStock
	seen := map[string]bool{}
	add := func(sym string, score float64, reason string) {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			return
		}
		seen[sym] = true
		out = append(out, models.SelectedStock{Symbol: sym, Score: score, Reason: reason})
	}

	for _, s := range p.Selected.v {
		if s.ok {
			add(string(s.v.Symbol), s.v.Score.v, string(s.v.Reason))
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, s := range p.Fallback.v {
		if s.ok {
			add(s.v, 0, "fallback")
		}
	}
	return out
}

// DecodeScreening returns the screened stocks, deduplicated, in service order.
func DecodeScreening(body []byte) []models.SelectedStock {
	var p screeningPayload
	_ = json.Unmarshal(body, &p)
	return p.picks()
}

type autoTradePayload struct {
	Selection lenient[screeningPayload] `json:"auto_selection"`
	Results   lenient[strategyPayload]  `json:"trading_results"`
}

// AutoTrade is the normalised combined auto-trade payload.
type AutoTrade struct {
	Selected []models.SelectedStock
	Strategy Strategy
}

// DecodeAutoTrade normalises a combined auto-trade payload.
func DecodeAutoTrade(body []byte) AutoTrade {
	var p autoTradePayload
	_ = json.Unmarshal(body, &p)
	sel, _ := p.Selection.get()
	res, _ := p.Results.get()
	return AutoTrade{Selected: sel.picks(), Strategy: res.normalise()}
}
