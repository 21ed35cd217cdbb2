// Package faults defines the classified error taxonomy shared by the detyped
// management model: schema construction, value validation, address
// resolution, signature matching and cardinality enforcement.
package faults

import (
	"errors"
	"fmt"
)

// Class represents the classification of a management model failure.
type Class string

const (
	// ClassSchema indicates an illegal or incomplete type or resource-info definition.
	ClassSchema Class = "schema"

	// ClassValidation indicates a value that does not satisfy its declared type.
	ClassValidation Class = "validation"

	// ClassAddress indicates that no entity exists at an address.
	ClassAddress Class = "address"

	// ClassSignature indicates parameters that do not match a declared signature.
	ClassSignature Class = "signature"

	// ClassCardinality indicates a child count that would violate declared bounds.
	ClassCardinality Class = "cardinality"

	// ClassState indicates an operation that is not allowed in the entity's state,
	// such as touching an id-only placeholder or mutating the root directly.
	ClassState Class = "state"

	// ClassPolicy indicates an invocation rejected by an admission policy.
	ClassPolicy Class = "policy"

	// ClassInternal indicates a broken contract inside a handler.
	ClassInternal Class = "internal"
)

// Error represents a classified error with context.
type Error struct {
	// Class is the error classification.
	Class Class `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Address is the string form of the address involved, if applicable.
	Address string `json:"address,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Address != "" && e.Operation != "":
		msg += fmt.Sprintf(" (address=%s, operation=%s)", e.Address, e.Operation)
	case e.Address != "":
		msg += fmt.Sprintf(" (address=%s)", e.Address)
	case e.Operation != "":
		msg += fmt.Sprintf(" (operation=%s)", e.Operation)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
// An empty Code on the target matches any code of the same class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Class != t.Class {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

func newError(class Class, code, format string, args ...interface{}) *Error {
	return &Error{
		Class:   class,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewSchemaError creates a schema-construction error.
func NewSchemaError(format string, args ...interface{}) *Error {
	return newError(ClassSchema, ErrCodeInvalidType, format, args...)
}

// NewValidationError creates a value-validation error.
func NewValidationError(format string, args ...interface{}) *Error {
	return newError(ClassValidation, ErrCodeInvalidValue, format, args...)
}

// NewAddressError creates an address-resolution error.
func NewAddressError(format string, args ...interface{}) *Error {
	return newError(ClassAddress, ErrCodeNoSuchEntity, format, args...)
}

// NewSignatureError creates a signature-mismatch error.
func NewSignatureError(format string, args ...interface{}) *Error {
	return newError(ClassSignature, ErrCodeSignatureMismatch, format, args...)
}

// NewCardinalityError creates a cardinality error.
func NewCardinalityError(format string, args ...interface{}) *Error {
	return newError(ClassCardinality, ErrCodeCardinality, format, args...)
}

// NewStateError creates an illegal-state error.
func NewStateError(code, format string, args ...interface{}) *Error {
	return newError(ClassState, code, format, args...)
}

// NewPolicyError creates a policy-denial error.
func NewPolicyError(format string, args ...interface{}) *Error {
	return newError(ClassPolicy, ErrCodePolicyDenied, format, args...)
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, err error) *Error {
	return &Error{
		Class:   ClassInternal,
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// WithAddress adds address context to an error.
func (e *Error) WithAddress(address string) *Error {
	e.Address = address
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCode replaces the error code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithCause sets the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// As returns the first *Error in the chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ClassOf returns the class of the first *Error in the chain, or "" if none.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// CodeOf returns the code of the first *Error in the chain, or "" if none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsSchema returns true if the error is a schema-construction error.
func IsSchema(err error) bool { return ClassOf(err) == ClassSchema }

// IsValidation returns true if the error is a value-validation error.
func IsValidation(err error) bool { return ClassOf(err) == ClassValidation }

// IsAddress returns true if the error is an address-resolution error.
func IsAddress(err error) bool { return ClassOf(err) == ClassAddress }

// IsSignature returns true if the error is a signature-mismatch error.
func IsSignature(err error) bool { return ClassOf(err) == ClassSignature }

// IsCardinality returns true if the error is a cardinality error.
func IsCardinality(err error) bool { return ClassOf(err) == ClassCardinality }

// IsState returns true if the error is an illegal-state error.
func IsState(err error) bool { return ClassOf(err) == ClassState }

// IsPolicy returns true if the invocation was denied by a policy.
func IsPolicy(err error) bool { return ClassOf(err) == ClassPolicy }

// Common error codes.
const (
	ErrCodeInvalidType       = "INVALID_TYPE"
	ErrCodeInvalidValue      = "INVALID_VALUE"
	ErrCodeUnknownItem       = "UNKNOWN_ITEM"
	ErrCodeNoSuchEntity      = "NO_SUCH_ENTITY"
	ErrCodeSignatureMismatch = "SIGNATURE_MISMATCH"
	ErrCodeCardinality       = "CARDINALITY_VIOLATION"
	ErrCodeIDOnly            = "ID_ONLY"
	ErrCodeRootImmutable     = "ROOT_IMMUTABLE"
	ErrCodeDuplicate         = "DUPLICATE"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeNoHandler         = "NO_HANDLER"
	ErrCodeDecode            = "DECODE"
	ErrCodePolicyDenied      = "POLICY_DENIED"
	ErrCodeIrreversible      = "IRREVERSIBLE"
	ErrCodeInternal          = "INTERNAL"
)
