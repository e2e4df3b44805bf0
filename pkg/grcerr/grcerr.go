package grcerr

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to API callers and audit logs.
const (
	CodeNotFound               = "NOT_FOUND"
	CodeCompositionConflict    = "COMPOSITION_CONFLICT"
	CodeCycleDetected          = "CYCLE_DETECTED"
	CodeUnsupportedPredicate   = "UNSUPPORTED_PREDICATE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeValidation             = "VALIDATION_ERROR"
)

type NotFoundError struct {
	Kind string // baseline, control, rule, entity, suite
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

func NewNotFound(kind string, id string) error { return &NotFoundError{Kind: kind, ID: id} }

func IsNotFound(err error) bool {
	_, ok := errors.AsType[*NotFoundError](err)
	return ok
}

type CompositionConflictError struct {
	OverlayID string
	ControlID string
	Action    string
	Detail    string
}

func (e *CompositionConflictError) Error() string {
	return fmt.Sprintf("composition conflict: overlay %s action %s on control %s: %s", e.OverlayID, e.Action, e.ControlID, e.Detail)
}

func NewCompositionConflict(overlayID string, controlID string, action string, detail string) error {
	return &CompositionConflictError{OverlayID: overlayID, ControlID: controlID, Action: action, Detail: detail}
}

func IsCompositionConflict(err error) bool {
	_, ok := errors.AsType[*CompositionConflictError](err)
	return ok
}

type CycleDetectedError struct {
	EntityID string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("hierarchy cycle detected at entity %s", e.EntityID)
}

func NewCycleDetected(entityID string) error { return &CycleDetectedError{EntityID: entityID} }

func IsCycleDetected(err error) bool {
	_, ok := errors.AsType[*CycleDetectedError](err)
	return ok
}

type UnsupportedPredicateError struct {
	RuleID    string
	Attribute string
	Operator  string
}

func (e *UnsupportedPredicateError) Error() string {
	return fmt.Sprintf("rule %s: operator %q unsupported for attribute %q", e.RuleID, e.Operator, e.Attribute)
}

func NewUnsupportedPredicate(ruleID string, attribute string, operator string) error {
	return &UnsupportedPredicateError{RuleID: ruleID, Attribute: attribute, Operator: operator}
}

func IsUnsupportedPredicate(err error) bool {
	_, ok := errors.AsType[*UnsupportedPredicateError](err)
	return ok
}

type ConcurrentModificationError struct {
	EntityID        string
	ExpectedVersion int
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("current suite pointer for entity %s moved past version %d", e.EntityID, e.ExpectedVersion)
}

func NewConcurrentModification(entityID string, expectedVersion int) error {
	return &ConcurrentModificationError{EntityID: entityID, ExpectedVersion: expectedVersion}
}

func IsConcurrentModification(err error) bool {
	_, ok := errors.AsType[*ConcurrentModificationError](err)
	return ok
}

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

func NewValidation(field string, msg string) error { return &ValidationError{Field: field, Msg: msg} }

func IsValidation(err error) bool {
	_, ok := errors.AsType[*ValidationError](err)
	return ok
}

// Code maps an error to its stable code, or "" when the error is not one of
// the taxonomy kinds.
func Code(err error) string {
	switch {
	case IsNotFound(err):
		return CodeNotFound
	case IsCompositionConflict(err):
		return CodeCompositionConflict
	case IsCycleDetected(err):
		return CodeCycleDetected
	case IsUnsupportedPredicate(err):
		return CodeUnsupportedPredicate
	case IsConcurrentModification(err):
		return CodeConcurrentModification
	case IsValidation(err):
		return CodeValidation
	default:
		return ""
	}
}
