package domain

import (
	"encoding/json"
	"fmt"
)

type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomeNotImplemented OutcomeKind = "not_implemented"
	OutcomeError          OutcomeKind = "error"
)

type FailureKind string

const (
	FailureTransport        FailureKind = "transport"
	FailureProtocol         FailureKind = "protocol"
	FailureApplication      FailureKind = "application"
	FailureNotImplemented   FailureKind = "not_implemented"
	FailureOutOfRange       FailureKind = "out_of_range"
	FailureSemanticMismatch FailureKind = "semantic_mismatch"
)

// Failure is the error type every request and verification step resolves
// to. Kind distinguishes network trouble from protocol trouble from a
// genuine semantic bug.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func NewFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Outcome is the tri-state result of one request against the service.
// Data is only set for OutcomeSuccess, Err only for OutcomeError.
type Outcome struct {
	Kind OutcomeKind
	Data json.RawMessage
	Err  *Failure
}

func SuccessOutcome(data json.RawMessage) Outcome {
	return Outcome{Kind: OutcomeSuccess, Data: data}
}

func NotImplementedOutcome() Outcome {
	return Outcome{Kind: OutcomeNotImplemented}
}

func ErrorOutcome(kind FailureKind, format string, args ...any) Outcome {
	return Outcome{Kind: OutcomeError, Err: NewFailure(kind, format, args...)}
}

// Decode unmarshals a success payload into v.
func (o Outcome) Decode(v any) error {
	if o.Kind != OutcomeSuccess {
		return fmt.Errorf("decode outcome: outcome is %s, not success", o.Kind)
	}
	if err := json.Unmarshal(o.Data, v); err != nil {
		return NewFailure(FailureProtocol, "decode payload: %v", err)
	}
	return nil
}

// CoreErr converts the outcome of a core emulator operation into an
// error. Core endpoints are defined to exist, so NotImplemented maps to
// a failure rather than an expected absence.
func (o Outcome) CoreErr(operation string) error {
	switch o.Kind {
	case OutcomeSuccess:
		return nil
	case OutcomeNotImplemented:
		return NewFailure(FailureNotImplemented, "%s: core endpoint missing (404)", operation)
	default:
		if o.Err != nil {
			return NewFailure(o.Err.Kind, "%s: %s", operation, o.Err.Message)
		}
		return NewFailure(FailureApplication, "%s: unknown error", operation)
	}
}
