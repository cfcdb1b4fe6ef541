package models

// Requests for the run endpoints. Dates are validated for format here; all
// semantic checks happen when the run is submitted.

type ManualRunRequest struct {
	Tickers   []string `json:"tickers" query:"tickers"`
	StartDate string   `json:"start_date" query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string   `json:"end_date" query:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Capital   float64  `json:"initial_capital" query:"initial_capital"`
	Optimize  *bool    `json:"optimize" query:"optimize"`
}

type ScreenRunRequest struct {
	Timeframe    string `json:"timeframe" query:"timeframe"`
	StrategyMode string `json:"strategy_mode" query:"strategy_mode"`
	MaxStocks    int    `json:"max_stocks" query:"max_stocks" validate:"gte=0,lte=50"`
}

type AutoTradeRunRequest struct {
	Timeframe    string  `json:"timeframe" query:"timeframe" default:"medium"`
	StrategyMode string  `json:"strategy_mode" query:"strategy_mode" default:"moderate"`
	MaxStocks    int     `json:"max_stocks" query:"max_stocks" validate:"gte=0,lte=50"`
	StartDate    string  `json:"start_date" query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string  `json:"end_date" query:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Capital      float64 `json:"initial_capital" query:"initial_capital"`
}
