package repository

import (
	"context"
	"time"

	"StratView/internal/domain/models"
	"StratView/internal/domain/repository"
	pkgkafka "StratView/pkg/kafka"
)

// messageWriter is the part of pkg/kafka.Producer the publisher needs.
type messageWriter interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers map[string]string) error
	Close() error
}

// RunEvent is the JSON body of a published run.
type RunEvent struct {
	RunID          string                 `json:"run_id"`
	Variant        models.Variant         `json:"variant"`
	Phase          models.Phase           `json:"phase"`
	Tickers        []string               `json:"tickers,omitempty"`
	StartDate      string                 `json:"start_date,omitempty"`
	EndDate        string                 `json:"end_date,omitempty"`
	Capital        float64                `json:"initial_capital"`
	StartedAt      time.Time              `json:"started_at"`
	FinishedAt     time.Time              `json:"finished_at"`
	DurationMs     int64                  `json:"duration_ms"`
	ErrorKind      models.ErrorKind       `json:"error_kind,omitempty"`
	Message        string                 `json:"message,omitempty"`
	StrategyFinal  *float64               `json:"strategy_final,omitempty"`
	BenchmarkFinal *float64               `json:"benchmark_final,omitempty"`
	TotalReturnPct *float64               `json:"total_return_pct,omitempty"`
	Degraded       bool                   `json:"benchmark_degraded,omitempty"`
	Rows           int                    `json:"rows"`
	Selected       []models.SelectedStock `json:"selected,omitempty"`
}

// NewRunEvent flattens a terminal state into an event.
func NewRunEvent(req models.RunRequest, st models.WorkflowState) RunEvent {
	ev := RunEvent{
		RunID:      st.RunID,
		Variant:    req.Variant,
		Phase:      st.Phase,
		Tickers:    req.Tickers,
		StartDate:  req.StartDate(),
		EndDate:    req.EndDate(),
		Capital:    req.Capital,
		StartedAt:  st.StartedAt,
		FinishedAt: st.FinishedAt,
		DurationMs: st.FinishedAt.Sub(st.StartedAt).Milliseconds(),
	}
	if st.Failure != nil {
		ev.ErrorKind = st.Failure.Kind
		ev.Message = st.Failure.Message
	}
	if r := st.Result; r != nil {
		ev.Rows = len(r.Series)
		ev.Selected = r.Selected
		ev.TotalReturnPct = r.Strategy.TotalReturnPct
		ev.Degraded = r.Benchmark.Degraded
		if r.Strategy.Final.Known {
			v := r.Strategy.Final.Value
			ev.StrategyFinal = &v
		}
		if r.Benchmark.Final.Known {
			v := r.Benchmark.Final.Value
			ev.BenchmarkFinal = &v
		}
		if len(r.Strategy.Tickers) > 0 {
			ev.Tickers = r.Strategy.Tickers
		}
	}
	return ev
}

// KafkaRunPublisher publishes terminal run states to Kafka, keyed by run id.
type KafkaRunPublisher struct {
	producer messageWriter
	topic    string
}

var _ repository.RunEventPublisher = (*KafkaRunPublisher)(nil)

// NewKafkaRunPublisher creates a run event publisher.
func NewKafkaRunPublisher(producer *pkgkafka.Producer, topic string) *KafkaRunPublisher {
	return &KafkaRunPublisher{producer: producer, topic: topic}
}

func (p *KafkaRunPublisher) PublishRun(ctx context.Context, req models.RunRequest, st models.WorkflowState) error {
	headers := map[string]string{
		"variant": string(req.Variant),
		"phase":   string(st.Phase),
	}
	return p.producer.Publish(ctx, p.topic, []byte(st.RunID), NewRunEvent(req, st), headers)
}

func (p *KafkaRunPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
