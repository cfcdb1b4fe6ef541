package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"StratView/internal/domain/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5534B"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C69026"))
	mutedStyle = lipgloss.NewStyle().Faint(true)
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// render prints a terminal workflow state in the selected output format.
func render(w io.Writer, st models.WorkflowState) error {
	if output == "json" {
		return writeJSON(w, st)
	}

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s run %s: %s", st.Variant, st.RunID, st.Phase)))
	if f := st.Failure; f != nil {
		fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("%s: %s", f.Kind, f.Message)))
		return nil
	}
	res := st.Result
	if res == nil {
		return nil
	}

	if len(res.Selected) > 0 {
		fmt.Fprintln(w, selectionTable(res.Selected))
	}
	if len(res.Series) > 0 {
		fmt.Fprintln(w, seriesTable(res.Series))
		fmt.Fprintln(w, summary(res))
	}
	return nil
}

// renderSnapshot prints one streamed snapshot as a single line.
func renderSnapshot(w io.Writer, snap models.Snapshot) error {
	if output == "json" {
		b, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}

	st := snap.State
	line := fmt.Sprintf("%-10s %s", st.Phase, orDash(st.RunID))
	if st.Variant != "" {
		line += " " + string(st.Variant)
	}
	switch {
	case st.Failure != nil:
		line += " " + failStyle.Render(fmt.Sprintf("%s: %s", st.Failure.Kind, st.Failure.Message))
	case st.Result != nil && len(st.Result.Series) > 0:
		last := st.Result.Series[len(st.Result.Series)-1]
		line += fmt.Sprintf(" strategy %s benchmark %s", money(last.Strategy), money(last.Benchmark))
	case st.Result != nil:
		line += fmt.Sprintf(" %d stocks selected", len(st.Result.Selected))
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func selectionTable(stocks []models.SelectedStock) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Symbol", "Score", "Reason")
	for _, s := range stocks {
		t.Row(s.Symbol, strconv.FormatFloat(s.Score, 'f', -1, 64), s.Reason)
	}
	return t.String()
}

func seriesTable(rows models.AlignedSeries) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Period", "Strategy", "Benchmark", "")
	for _, r := range rows {
		mark := ""
		if r.Estimated {
			mark = "est."
		}
		t.Row(r.Period, money(r.Strategy), money(r.Benchmark), mark)
	}
	return t.String()
}

func summary(res *models.RunResult) string {
	s := res.Strategy
	out := fmt.Sprintf("Strategy  %s -> %s", money(s.Initial), balance(s.Final))
	if s.TotalReturnPct != nil {
		out += fmt.Sprintf(" (%s%%)", decimal.NewFromFloat(*s.TotalReturnPct).StringFixed(2))
	}
	if p := s.Params; p != nil {
		out += mutedStyle.Render(fmt.Sprintf("  MACD %d/%d/%d", p.Fast, p.Slow, p.Signal))
	}

	b := res.Benchmark
	out += fmt.Sprintf("\nBenchmark %s -> %s", money(s.Initial), balance(b.Final))
	if b.Degraded {
		out += "\n" + warnStyle.Render("benchmark unavailable, drawn flat: "+b.Message)
	}
	return out
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func balance(b models.Balance) string {
	if !b.Known {
		return "n/a"
	}
	return money(b.Value)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
