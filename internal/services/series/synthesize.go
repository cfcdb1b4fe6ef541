package series

import (
	"fmt"
	"math"

	"StratView/internal/domain/models"

	"github.com/shopspring/decimal"
)

// DefaultPoints is the number of synthetic periods after the start point.
const DefaultPoints = 12

// floorRatio bounds how far an interpolated point may fall below capital.
const floorRatio = 0.5

// Synthesize approximates a monthly equity path from capital to final using
// a constant compounded rate. The result has points+1 values: the first is
// capital, the last is exactly final, and every value in between is rounded
// to cents, floored at half of capital, and marked Estimated. A non-finite
// capital or final is treated as zero.
func Synthesize(capital, final float64, points int) models.PeriodSeries {
	if points <= 0 {
		points = DefaultPoints
	}
	capital, final = finite(capital), finite(final)

	out := make(models.PeriodSeries, points+1)
	out[0] = models.PeriodPoint{Period: StartLabel, Value: capital}
	out[points] = models.PeriodPoint{Period: monthLabel(points), Value: final}

	floor := capital * floorRatio
	rate := compoundRate(capital, final, points)
	for i := 1; i < points; i++ {
		v := final
		if !math.IsNaN(rate) {
			v = capital * math.Pow(1+rate, float64(i))
		}
		v = roundCents(v)
		if v < floor {
			v = floor
		}
		out[i] = models.PeriodPoint{Period: monthLabel(i), Value: v, Estimated: true}
	}
	return out
}

// StartLabel names period zero of synthetic and degenerate series.
const StartLabel = "Start"

func monthLabel(i int) string {
	return fmt.Sprintf("Month %d", i)
}

// compoundRate solves capital*(1+r)^points = final. NaN means no rate
// exists and interior points should hold final.
func compoundRate(capital, final float64, points int) float64 {
	if capital <= 0 {
		return math.NaN()
	}
	ratio := final / capital
	if ratio < 0 {
		ratio = 0
	}
	return math.Pow(ratio, 1/float64(points)) - 1
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(finite(v)).Round(2).InexactFloat64()
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
