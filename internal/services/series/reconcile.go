// Package series builds the chart-ready comparison of a strategy leg and a
// benchmark leg.
package series

import (
	"math"

	"StratView/internal/domain/models"
)

// Reconcile aligns the two legs of a run into one series.
//
// When neither leg is aggregate-only, rows are aligned by index: the result
// has max(m, n) rows and the shorter leg holds its last value. Labels are
// taken from the strategy leg where it has a point. A leg with no data at all
// is flat at capital.
//
// When either leg has a final balance but no periods, both legs are
// synthesised onto the same 13-row monthly grid instead.
//
// The output always has at least one row and no negative values.
func Reconcile(strategy, benchmark models.Leg, capital float64) models.AlignedSeries {
	strategy = applyFinal(strategy)
	benchmark = applyFinal(benchmark)

	var out models.AlignedSeries
	switch {
	case strategy.AggregateOnly() || benchmark.AggregateOnly():
		out = byIndex(onGrid(strategy, capital), onGrid(benchmark, capital), capital)
	case !strategy.Granular() && !benchmark.Granular():
		out = models.AlignedSeries{{Period: StartLabel, Strategy: capital, Benchmark: capital}}
	default:
		out = byIndex(strategy.Series, benchmark.Series, capital)
	}

	for i := range out {
		out[i].Strategy = clamp(out[i].Strategy)
		out[i].Benchmark = clamp(out[i].Benchmark)
	}
	return out
}

// applyFinal lets a known final balance override the leg's own last point.
func applyFinal(l models.Leg) models.Leg {
	if !l.Granular() || !l.Final.Known {
		return l
	}
	last := len(l.Series) - 1
	if l.Series[last].Value == l.Final.Value {
		return l
	}
	s := make(models.PeriodSeries, len(l.Series))
	copy(s, l.Series)
	s[last].Value = l.Final.Value
	l.Series = s
	return l
}

// onGrid places one leg on the synthetic monthly grid. A leg with nothing
// known stays empty and is drawn flat by byIndex.
func onGrid(l models.Leg, capital float64) models.PeriodSeries {
	switch {
	case l.Granular():
		last, _ := l.Series.Last()
		return Synthesize(capital, last.Value, DefaultPoints)
	case l.Final.Known:
		return Synthesize(capital, l.Final.Value, DefaultPoints)
	default:
		return nil
	}
}

func byIndex(strategy, benchmark models.PeriodSeries, capital float64) models.AlignedSeries {
	n := len(strategy)
	if len(benchmark) > n {
		n = len(benchmark)
	}

	out := make(models.AlignedSeries, n)
	for i := 0; i < n; i++ {
		sp, sOwn := pointAt(strategy, i, capital)
		bp, bOwn := pointAt(benchmark, i, capital)

		label := sp.Period
		if !sOwn {
			label = bp.Period
		}

		out[i] = models.AlignedRow{
			Period:    label,
			Strategy:  sp.Value,
			Benchmark: bp.Value,
			Estimated: (sOwn && sp.Estimated) || (bOwn && bp.Estimated),
		}
	}
	return out
}

// pointAt returns s[i] and true, or the hold-last value and false when s is
// shorter than i+1. An empty s holds capital.
func pointAt(s models.PeriodSeries, i int, capital float64) (models.PeriodPoint, bool) {
	if i < len(s) {
		return s[i], true
	}
	if last, ok := s.Last(); ok {
		return models.PeriodPoint{Period: last.Period, Value: last.Value}, false
	}
	return models.PeriodPoint{Value: capital}, false
}

func clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
