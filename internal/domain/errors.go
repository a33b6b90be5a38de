package domain

import (
	"context"
	"errors"
	"fmt"
)

// Category sentinels. Combine with NewSubSystemError for subsystem-specific codes.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrLimitReached = fmt.Errorf("limit reached")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrUnavailable  = fmt.Errorf("unavailable")
)

// Sentinel errors for the domain layer.
var (
	ErrSessionNotFound   = fmt.Errorf("session not found")
	ErrSessionBusy       = fmt.Errorf("session is handling another request")
	ErrConfigLoad        = fmt.Errorf("failed to load configuration")
	ErrDecryption        = fmt.Errorf("decryption failed")
	ErrWorkerNotFound    = fmt.Errorf("worker not configured")
	ErrTransport         = fmt.Errorf("worker transport failed")
	ErrMalformedResponse = fmt.Errorf("malformed worker response")
	ErrWorkerBusiness    = fmt.Errorf("worker reported failure")
	ErrCircuitOpen       = fmt.Errorf("worker circuit open")
	ErrUnknownSkill      = fmt.Errorf("unknown skill")
	ErrRestaurantClosed  = fmt.Errorf("restaurant is closed")
	ErrRouteNotFound     = fmt.Errorf("no route found")
	ErrRateLimit         = fmt.Errorf("rate limit exceeded")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Router.Handle")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "restaurant", "rider"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrLimitReached) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ResultFromError classifies an error returned by a worker exchange into a
// WorkerResult. Timeouts become the fixed "timeout" reason. Retriable follows
// IsRetryableError, so an error outside the known sentinels is not retried.
func ResultFromError(err error) WorkerResult {
	switch {
	case err == nil:
		return TransportResult("empty response")
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return TimeoutResult()
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrLimitReached), errors.Is(err, ErrUnavailable):
		return Fail(FailureUnavailable, err.Error(), IsRetryableError(err))
	case errors.Is(err, ErrWorkerBusiness):
		reason := err.Error()
		var de *DomainError
		if errors.As(err, &de) && de.Detail != "" {
			reason = de.Detail
		}
		return Fail(FailureBusiness, reason, IsRetryableError(err))
	default:
		return Fail(FailureTransport, err.Error(), IsRetryableError(err))
	}
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	CodeSessionBusy       ErrorCode = "SESSION_BUSY"
	CodeConfigLoad        ErrorCode = "CONFIG_LOAD"
	CodeDecryption        ErrorCode = "DECRYPTION"
	CodeWorkerNotFound    ErrorCode = "WORKER_NOT_FOUND"
	CodeTransport         ErrorCode = "TRANSPORT"
	CodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	CodeWorkerBusiness    ErrorCode = "WORKER_BUSINESS"
	CodeCircuitOpen       ErrorCode = "CIRCUIT_OPEN"
	CodeUnknownSkill      ErrorCode = "UNKNOWN_SKILL"
	CodeRestaurantClosed  ErrorCode = "RESTAURANT_CLOSED"
	CodeRouteNotFound     ErrorCode = "ROUTE_NOT_FOUND"
	CodeRateLimit         ErrorCode = "RATE_LIMIT"

	// Subsystem-specific codes used by subSystemCodeMap.
	CodeRestaurantNotFound ErrorCode = "RESTAURANT_NOT_FOUND"
	CodeMenuItemNotFound   ErrorCode = "MENU_ITEM_NOT_FOUND"
	CodeWorkerTimeout      ErrorCode = "WORKER_TIMEOUT"
	CodeRoutesUnavailable  ErrorCode = "ROUTES_UNAVAILABLE"

	// Category error codes.
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeTimeout      ErrorCode = "TIMEOUT"
	CodeLimitReached ErrorCode = "LIMIT_REACHED"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeUnavailable  ErrorCode = "UNAVAILABLE"
)

// codePrecedence orders the wrapped-sentinel lookup in ErrorCodeOf. An error
// wrapping several sentinels gets the code of the first one listed, so the
// specific worker failures come before the broad categories.
var codePrecedence = []struct {
	sentinel error
	code     ErrorCode
}{
	{ErrSessionBusy, CodeSessionBusy},
	{ErrSessionNotFound, CodeSessionNotFound},
	{ErrCircuitOpen, CodeCircuitOpen},
	{ErrRateLimit, CodeRateLimit},
	{ErrWorkerBusiness, CodeWorkerBusiness},
	{ErrMalformedResponse, CodeMalformedResponse},
	{ErrTransport, CodeTransport},
	{ErrWorkerNotFound, CodeWorkerNotFound},
	{ErrUnknownSkill, CodeUnknownSkill},
	{ErrRestaurantClosed, CodeRestaurantClosed},
	{ErrRouteNotFound, CodeRouteNotFound},
	{ErrConfigLoad, CodeConfigLoad},
	{ErrDecryption, CodeDecryption},
	{ErrTimeout, CodeTimeout},
	{ErrLimitReached, CodeLimitReached},
	{ErrUnavailable, CodeUnavailable},
	{ErrNotFound, CodeNotFound},
	{ErrInvalidInput, CodeInvalidInput},
}

var errorCodeMap = func() map[error]ErrorCode {
	m := make(map[error]ErrorCode, len(codePrecedence))
	for _, c := range codePrecedence {
		m[c.sentinel] = c.code
	}
	return m
}()

// subSystemCodeMap resolves (category sentinel, subsystem) pairs to specific codes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"restaurant": CodeRestaurantNotFound,
		"menu":       CodeMenuItemNotFound,
		"worker":     CodeWorkerNotFound,
	},
	ErrTimeout: {
		"worker": CodeWorkerTimeout,
	},
	ErrUnavailable: {
		"rider": CodeRoutesUnavailable,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	for _, c := range codePrecedence {
		if errors.Is(err, c.sentinel) {
			return c.code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
