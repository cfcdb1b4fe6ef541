// Package keepalive pings the backtesting service on a fixed interval so a
// host that sleeps when idle stays warm. Nothing in the run path depends on it.
package keepalive

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"StratView/internal/domain/models"
	"StratView/internal/services/outcome"
	"StratView/pkg/logger"
	"StratView/pkg/metrics"
)

// Heartbeater is the gateway call the pinger needs.
type Heartbeater interface {
	Heartbeat(ctx context.Context) models.RemoteOutcome
}

// Status describes the pinger.
type Status struct {
	Running       bool          `json:"running"`
	Interval      time.Duration `json:"interval"`
	LastPing      time.Time     `json:"last_ping,omitempty"`
	LastOK        bool          `json:"last_ok"`
	LastTimestamp string        `json:"last_timestamp,omitempty"`
	NextPing      *time.Time    `json:"next_ping,omitempty"`
}

type Pinger struct {
	gw       Heartbeater
	interval time.Duration
	log      *logger.Logger
	metrics  *metrics.Recorder
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	last   time.Time
	lastOK bool
	lastTS string
}

func New(gw Heartbeater, interval time.Duration, log *logger.Logger, m *metrics.Recorder) *Pinger {
	if log == nil {
		log = logger.Nop()
	}
	return &Pinger{gw: gw, interval: interval, log: log, metrics: m, now: time.Now}
}

// Start sends one ping immediately and then one per interval until Stop or
// ctx ends. Starting a running pinger does nothing.
func (p *Pinger) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.log.Debug("keepalive already running")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		p.Ping(ctx)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Ping(ctx)
			}
		}
	}()
	p.log.Info("keepalive started", logger.Duration("interval_ms", p.interval))
}

// Stop halts the ping loop and waits for an in-flight ping to return.
func (p *Pinger) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.log.Info("keepalive stopped")
}

// Ping sends one heartbeat and records its result.
func (p *Pinger) Ping(ctx context.Context) error {
	out := p.gw.Heartbeat(ctx)
	cls := outcome.Classify(out)

	var ts string
	if cls.OK() {
		ts = heartbeatTimestamp(out.Body)
	}

	p.mu.Lock()
	p.last = p.now()
	p.lastOK = cls.OK()
	if cls.OK() {
		p.lastTS = ts
	}
	p.mu.Unlock()

	if !cls.OK() {
		p.metrics.RecordKeepAlive("error")
		p.log.Warn("keepalive ping failed",
			logger.String("kind", string(cls.Kind)),
			logger.String("message", cls.Message),
		)
		return cls.Err()
	}
	p.metrics.RecordKeepAlive("ok")
	p.log.Debug("keepalive ping ok", logger.String("timestamp", ts))
	return nil
}

// Status reports whether the loop runs and what the last ping returned.
func (p *Pinger) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Status{
		Running:       p.cancel != nil,
		Interval:      p.interval,
		LastPing:      p.last,
		LastOK:        p.lastOK,
		LastTimestamp: p.lastTS,
	}
	if s.Running && !p.last.IsZero() {
		next := p.last.Add(p.interval)
		s.NextPing = &next
	}
	return s
}

func heartbeatTimestamp(body []byte) string {
	var p struct {
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &p); err != nil || len(p.Timestamp) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Timestamp, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(p.Timestamp, &n); err == nil {
		return n.String()
	}
	return string(p.Timestamp)
}
