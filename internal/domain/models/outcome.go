package models

import (
	"fmt"
	"time"
)

// Remote endpoint names, used in messages, logs and metric labels.
const (
	EndpointStrategy  = "strategy backtest"
	EndpointBenchmark = "benchmark"
	EndpointScreening = "screening"
	EndpointAutoTrade = "auto-trade"
	EndpointHeartbeat = "heartbeat"
)

// OutcomeTag discriminates RemoteOutcome.
type OutcomeTag int

const (
	OutcomeOK OutcomeTag = iota
	OutcomeHTTPError
	OutcomeTransportError
	OutcomeTimeout
)

func (t OutcomeTag) String() string {
	switch t {
	case OutcomeOK:
		return "ok"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("OutcomeTag(%d)", int(t))
	}
}

// RemoteOutcome is the raw result of one remote call. Which fields are set
// depends on Tag: Body for OK and HTTPError, Status for HTTPError, Message
// for TransportError, Ceiling for Timeout.
type RemoteOutcome struct {
	Endpoint string
	Tag      OutcomeTag
	Status   int
	Body     []byte
	Message  string
	Ceiling  time.Duration
}

func OKOutcome(endpoint string, body []byte) RemoteOutcome {
	return RemoteOutcome{Endpoint: endpoint, Tag: OutcomeOK, Body: body}
}

func HTTPErrorOutcome(endpoint string, status int, body []byte) RemoteOutcome {
	return RemoteOutcome{Endpoint: endpoint, Tag: OutcomeHTTPError, Status: status, Body: body}
}

func TransportErrorOutcome(endpoint, message string) RemoteOutcome {
	return RemoteOutcome{Endpoint: endpoint, Tag: OutcomeTransportError, Message: message}
}

func TimeoutOutcome(endpoint string, ceiling time.Duration) RemoteOutcome {
	return RemoteOutcome{Endpoint: endpoint, Tag: OutcomeTimeout, Ceiling: ceiling}
}

// ErrorKind is the user-facing failure taxonomy. KindNone means success.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindInvalidRequest     ErrorKind = "InvalidRequest"
	KindServiceRejected    ErrorKind = "ServiceRejected"
	KindServiceUnavailable ErrorKind = "ServiceUnavailable"
	KindUnreachable        ErrorKind = "Unreachable"
	KindTimedOut           ErrorKind = "TimedOut"
)

// Classification is the verdict on one RemoteOutcome.
type Classification struct {
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message,omitempty"`
}

// OK reports a successful call.
func (c Classification) OK() bool { return c.Kind == KindNone }

// Err returns c as a *Failure, or nil when c is a success.
func (c Classification) Err() error {
	if c.OK() {
		return nil
	}
	return &Failure{Kind: c.Kind, Message: c.Message}
}

// Failure is the error form of a non-success classification.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Invalid builds an InvalidRequest failure.
func Invalid(format string, a ...interface{}) *Failure {
	return &Failure{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, a...)}
}
