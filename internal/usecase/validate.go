package usecase

import (
	"context"
	"math"
	"strings"

	"StratView/internal/domain/models"
	xhttp "StratView/pkg/http"
)

// validateRun applies the per-variant input gates. It never touches the
// network.
func validateRun(ctx context.Context, req models.RunRequest) *models.Failure {
	r := req
	if errs := xhttp.ValidateStruct(ctx, &r); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Message)
		}
		return models.Invalid("%s", strings.Join(msgs, "; "))
	}

	switch req.Variant {
	case models.VariantManual:
		if len(req.Tickers) == 0 {
			return models.Invalid("at least one ticker is required")
		}
		if f := validateRange(req); f != nil {
			return f
		}
		return validateCapital(req)

	case models.VariantScreenOnly:
		if req.Timeframe == "" {
			return models.Invalid("timeframe is required")
		}
		if req.StrategyMode == "" {
			return models.Invalid("strategy_mode is required")
		}
		return nil

	case models.VariantAutoTrade:
		if f := validateRange(req); f != nil {
			return f
		}
		return validateCapital(req)
	}
	return models.Invalid("unknown workflow variant %q", req.Variant)
}

func validateRange(req models.RunRequest) *models.Failure {
	switch {
	case req.Start.IsZero():
		return models.Invalid("start_date is required")
	case req.End.IsZero():
		return models.Invalid("end_date is required")
	case !req.Start.Before(req.End):
		return models.Invalid("start_date must be before end_date")
	}
	return nil
}

func validateCapital(req models.RunRequest) *models.Failure {
	if !(req.Capital > 0) || math.IsInf(req.Capital, 1) {
		return models.Invalid("initial_capital must be a positive amount")
	}
	return nil
}
