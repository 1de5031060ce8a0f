package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// ErrConflict is returned by cursor stores when a commit loses the
// optimistic concurrency race. Callers abort the run without retrying.
var ErrConflict = errors.New("cursor version conflict")

// IsConflict reports whether err is a cursor commit conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// TransientError marks a failure that is safe to retry (timeouts, 5xx,
// broken connections). Retry loops unwrap it to decide whether another
// attempt is worthwhile.
type TransientError struct {
	Op      string
	Message string
	Err     error
}

func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

func NewTransientErrorf(op string, format string, args ...any) *TransientError {
	return &TransientError{Op: op, Message: fmt.Sprintf(format, args...)}
}

func (e *TransientError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// FetchError is returned when a page fetch exhausts its retry budget or
// fails terminally. The cursor is never advanced past a FetchError.
type FetchError struct {
	Stream     string
	Skip       int
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	parts := []string{fmt.Sprintf("fetch failed for stream '%s' at skip %d", e.Stream, e.Skip)}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("after %d attempts", e.Attempts))
	}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status %d", e.StatusCode))
	}
	msg := strings.Join(parts, " ")
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// PublishError is returned when a batch cannot be written to the stream
// bus. The caller must not commit the cursor for the failed page.
type PublishError struct {
	Topic   string
	Records int
	Err     error
}

func (e *PublishError) Error() string {
	msg := fmt.Sprintf("publish failed for topic '%s' (%d records)", e.Topic, e.Records)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

func IsPublishError(err error) bool {
	var pe *PublishError
	return errors.As(err, &pe)
}

// DeliveryError is returned when one output family exhausts its delivery
// retries. It carries the family so the caller can route the records to
// the dead letter queue instead of dropping them.
type DeliveryError struct {
	Family   string
	Records  int
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("delivery failed for family '%s' (%d records) after %d attempts", e.Family, e.Records, e.Attempts)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

// ValidationEvent records a report or fact that failed validation and was
// skipped. It is emitted as a diagnostic, not returned as an error, so one
// bad record never aborts its batch.
type ValidationEvent struct {
	SafetyReportID string `json:"safety_report_id,omitempty"`
	Family         string `json:"family"`
	Field          string `json:"field"`
	Reason         string `json:"reason"`
}

func (e ValidationEvent) String() string {
	id := e.SafetyReportID
	if id == "" {
		id = "<unknown>"
	}
	return fmt.Sprintf("validation: report %s family '%s' field '%s': %s", id, e.Family, e.Field, e.Reason)
}

// ToHTTPError converts any pipeline error to an HTTP error for the admin
// surface.
func ToHTTPError(err error) *httperror.HTTPError {
	switch {
	case IsConflict(err):
		return httperror.NewHTTPError(http.StatusConflict, err.Error())
	case IsTransient(err):
		return httperror.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return httperror.ToHTTPError(err)
	}
}
