// Package outcome turns raw remote call results into the user-facing error
// taxonomy.
package outcome

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"StratView/internal/domain/models"
)

// Classify maps every RemoteOutcome to exactly one Classification. It is
// pure: the same outcome always yields the same result.
func Classify(o models.RemoteOutcome) models.Classification {
	switch o.Tag {
	case models.OutcomeOK:
		fields, ok := decodeObject(o.Body)
		if !ok {
			return models.Classification{
				Kind:    models.KindServiceRejected,
				Message: fmt.Sprintf("malformed response from %s", o.Endpoint),
			}
		}
		if msg := errorText(fields); msg != "" {
			return models.Classification{Kind: models.KindServiceRejected, Message: msg}
		}
		return models.Classification{}

	case models.OutcomeHTTPError:
		switch {
		case o.Status >= 500:
			return models.Classification{
				Kind:    models.KindServiceUnavailable,
				Message: fmt.Sprintf("%s returned HTTP %d: the service is starting up, retry shortly", o.Endpoint, o.Status),
			}
		case o.Status >= 400:
			msg := fmt.Sprintf("%s rejected the request as invalid (HTTP %d)", o.Endpoint, o.Status)
			if fields, ok := decodeObject(o.Body); ok {
				if detail := errorText(fields); detail != "" {
					msg += ": " + detail
				}
			}
			return models.Classification{Kind: models.KindInvalidRequest, Message: msg}
		default:
			return models.Classification{
				Kind:    models.KindServiceUnavailable,
				Message: fmt.Sprintf("%s returned unexpected HTTP %d, retry shortly", o.Endpoint, o.Status),
			}
		}

	case models.OutcomeTransportError:
		return models.Classification{
			Kind:    models.KindUnreachable,
			Message: fmt.Sprintf("the backtesting service could not be reached (%s)", o.Endpoint),
		}

	case models.OutcomeTimeout:
		return models.Classification{
			Kind:    models.KindTimedOut,
			Message: fmt.Sprintf("the %s call took longer than %s", o.Endpoint, o.Ceiling),
		}
	}

	return models.Classification{
		Kind:    models.KindUnreachable,
		Message: fmt.Sprintf("unrecognised outcome from %s", o.Endpoint),
	}
}

func decodeObject(body []byte) (map[string]json.RawMessage, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

// errorText returns the payload's "error" field as text. Absent, null,
// false and empty values count as no error.
func errorText(fields map[string]json.RawMessage) string {
	raw, ok := fields["error"]
	if !ok {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch e := v.(type) {
	case nil:
		return ""
	case bool:
		if !e {
			return ""
		}
		return "the service reported an error"
	case string:
		return strings.TrimSpace(e)
	default:
		return string(bytes.TrimSpace(raw))
	}
}
