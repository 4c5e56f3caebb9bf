package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a rejection so the transport layer can map it to a status
// without parsing messages.
type Kind string

const (
	KindNotFound         Kind = "NOT_FOUND"
	KindBadInput         Kind = "BAD_INPUT"
	KindValidationFailed Kind = "VALIDATION_FAILED"
	KindStateConflict    Kind = "STATE_CONFLICT"
)

// Rule names the specific business rule that rejected the request.
const (
	RuleCapacity          = "CAPACITY_EXCEEDED"
	RuleLicenseExpired    = "COMPLIANCE_BLOCKED"
	RuleTruckUnavailable  = "TRUCK_UNAVAILABLE"
	RuleShipmentNotBooked = "SHIPMENT_NOT_ASSIGNED"
	RuleOdometer          = "ODOMETER_REGRESSION"
	RuleTerminalState     = "TERMINAL_STATE"
)

type Fault struct {
	FaultKind Kind
	Rule      string
	Message   string
}

func (f *Fault) Error() string {
	return f.Message
}

func NotFound(what string) *Fault {
	return &Fault{FaultKind: KindNotFound, Message: what + " not found"}
}

func NotFoundf(format string, args ...any) *Fault {
	return &Fault{FaultKind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func BadInput(msg string) *Fault {
	return &Fault{FaultKind: KindBadInput, Message: msg}
}

func Validation(rule, format string, args ...any) *Fault {
	return &Fault{FaultKind: KindValidationFailed, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

func Conflict(rule, format string, args ...any) *Fault {
	return &Fault{FaultKind: KindStateConflict, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the fault kind, or "" if err carries no fault
// (an unstructured internal failure).
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.FaultKind
	}
	return ""
}

func RuleOf(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Rule
	}
	return ""
}

func IsNotFound(err error) bool      { return KindOf(err) == KindNotFound }
func IsBadInput(err error) bool      { return KindOf(err) == KindBadInput }
func IsValidation(err error) bool    { return KindOf(err) == KindValidationFailed }
func IsStateConflict(err error) bool { return KindOf(err) == KindStateConflict }
