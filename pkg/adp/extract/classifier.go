package extract

import (
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Outcome is the classification of one response. It is a plain value the
// executor acts on mechanically, not an error or panic.
type Outcome int

const (
	// OutcomeSuccess extracts records normally
	OutcomeSuccess Outcome = iota
	// OutcomeSoftSkip contributes zero records for this call and continues
	OutcomeSoftSkip
	// OutcomeStopDescendants abandons remaining dependent calls tied to
	// the current parent record, then continues with the next one
	OutcomeStopDescendants
	// OutcomeRetryable signals the caller should retry with backoff
	OutcomeRetryable
	// OutcomeFatal aborts the run
	OutcomeFatal
)

// String returns the outcome name for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSoftSkip:
		return "soft_skip"
	case OutcomeStopDescendants:
		return "stop_descendants"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Action is the outcome a matched rule produces.
type Action int

const (
	// ActionSoftSkip logs and emits zero records for this call only
	ActionSoftSkip Action = iota
	// ActionStopDescendants logs and stops further dependent calls for
	// the current parent record
	ActionStopDescendants
)

// Rule matches one known error shape. The ADP API reports many benign
// "no data for this entity" conditions as generic 400/404/500 statuses
// with the real signal buried in a confirmMessage envelope, so rules match
// on status plus an optional body path.
type Rule struct {
	// Status is the expected HTTP status code
	Status int
	// BodyPath is a dotted path into the response body, empty for
	// status-only rules
	BodyPath string
	// Equals matches the value at BodyPath exactly
	Equals string
	// Contains matches when the value at BodyPath contains the substring
	Contains string
	// Action taken when the rule matches
	Action Action
	// Description explains the condition in logs
	Description string
}

// matches reports whether the rule applies to the response. bodyValid is
// false when the body failed to parse, which disqualifies body-dependent
// rules but leaves status-only rules in play.
func (r *Rule) matches(resp *Response, bodyValid bool) bool {
	if resp.StatusCode != r.Status {
		return false
	}
	if r.BodyPath == "" {
		return true
	}
	if !bodyValid {
		return false
	}

	result := gjson.GetBytes(resp.Body, r.BodyPath)
	if !result.Exists() {
		return false
	}

	if result.IsArray() {
		for _, elem := range result.Array() {
			if r.matchValue(elem.String()) {
				return true
			}
		}
		return false
	}

	return r.matchValue(result.String())
}

func (r *Rule) matchValue(value string) bool {
	if r.Equals != "" {
		return value == r.Equals
	}
	if r.Contains != "" {
		return strings.Contains(value, r.Contains)
	}
	return false
}

// Classification is the result of classifying one response.
type Classification struct {
	Outcome Outcome
	// Rule is the matched rule, nil when the default applied
	Rule *Rule
	// Message carries the diagnostic for fatal outcomes and the rule
	// description for skips
	Message string
}

// Classify evaluates the stream's ordered rule list against a response.
// The first matching rule wins. With no match, default status validation
// applies: 2xx is success, 429 and 5xx are retryable, anything else is
// fatal with truncated request/response diagnostics attached.
func Classify(resp *Response, rules []Rule) Classification {
	bodyValid := len(resp.Body) > 0 && gjson.ValidBytes(resp.Body)

	for i := range rules {
		rule := &rules[i]
		if !rule.matches(resp, bodyValid) {
			continue
		}

		outcome := OutcomeSoftSkip
		if rule.Action == ActionStopDescendants {
			outcome = OutcomeStopDescendants
		}
		return Classification{
			Outcome: outcome,
			Rule:    rule,
			Message: rule.Description,
		}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Classification{Outcome: OutcomeSuccess}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Classification{Outcome: OutcomeRetryable, Message: resp.ErrorMessage()}
	default:
		return Classification{Outcome: OutcomeFatal, Message: resp.ErrorMessage()}
	}
}
