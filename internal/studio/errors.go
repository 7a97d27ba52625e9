package studio

import (
	"errors"
	"net/http"
	"strings"
)

// Kind classifies a studio failure.
type Kind string

const (
	// KindInput is a missing or malformed input. No backend call was made.
	KindInput Kind = "input"
	// KindCapability is a failure reported by the generation backend.
	KindCapability Kind = "capability"
	// KindEmptyResult is a backend call that produced no usable image.
	KindEmptyResult Kind = "empty_result"
	// KindBusy rejects an operation that overlaps another one.
	KindBusy Kind = "busy"
	// KindDiscarded is an operation whose result was dropped because the
	// session was reset while it ran.
	KindDiscarded Kind = "discarded"
)

const (
	quotaMessage   = "You've exceeded the free tier limit. Please try again later or upgrade to Pro for unlimited access."
	billingMessage = "This feature requires a billed account setup. Please upgrade to Pro."
)

var (
	ErrBusy      = &Error{Kind: KindBusy, Message: "Another operation is already in progress."}
	ErrDiscarded = &Error{Kind: KindDiscarded, Message: "The workspace was reset before the operation finished."}
)

// Error is returned by every failing session operation. Message is safe to
// show to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func inputError(message string) *Error {
	return &Error{Kind: KindInput, Message: message}
}

func capabilityError(err error) *Error {
	return &Error{Kind: KindCapability, Message: translate(err), Err: err}
}

// variationsError keeps the upgrade messages of err and replaces any other
// backend text with a generic one.
func variationsError(err error) *Error {
	msg := translate(err)
	if msg != quotaMessage && msg != billingMessage {
		msg = noVariationsMessage
	}
	return &Error{Kind: KindCapability, Message: msg, Err: err}
}

func emptyResult(message string) *Error {
	return &Error{Kind: KindEmptyResult, Message: message}
}

// KindOf returns the kind of a studio error, or KindCapability for any
// other error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindCapability
}

// UserMessage converts err into the text shown to the user. Rate-limit and
// quota failures and billing failures get fixed upgrade messages; every
// other failure keeps its own message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return translate(err)
}

type statusCoder interface {
	HTTPStatus() int
}

func translate(err error) string {
	var sc statusCoder
	if errors.As(err, &sc) && sc.HTTPStatus() == http.StatusTooManyRequests {
		return quotaMessage
	}
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "quota") {
		return quotaMessage
	}
	if strings.Contains(msg, "billed users") {
		return billingMessage
	}
	return msg
}
