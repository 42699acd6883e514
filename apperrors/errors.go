package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// Kind classifies a failure talking to the carrier API.
type Kind string

const (
	// KindTransport means the request was sent but no response came back
	// (offline, DNS, connection reset, timeout).
	KindTransport Kind = "transport"
	// KindAPI means the carrier answered with a non-success status.
	KindAPI Kind = "api"
	// KindRequestSetup means the request could not be built at all.
	KindRequestSetup Kind = "request_setup"
)

// Error represents an application error
type Error struct {
	Code       int    `json:"code"`
	Kind       Kind   `json:"kind,omitempty"`
	Message    string `json:"message"`
	StatusCode int    `json:"carrier_status,omitempty"` // carrier HTTP status for KindAPI
	TimedOut   bool   `json:"timed_out,omitempty"`
	Err        error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Transport wraps a failure where no response was received.
func Transport(message string, err error, timedOut bool) *Error {
	code := http.StatusBadGateway
	if timedOut {
		code = http.StatusGatewayTimeout
	}
	return &Error{Code: code, Kind: KindTransport, Message: message, TimedOut: timedOut, Err: err}
}

// API wraps a non-success carrier response.
func API(statusCode int, message string) *Error {
	return &Error{Code: http.StatusBadGateway, Kind: KindAPI, StatusCode: statusCode, Message: message}
}

// RequestSetup wraps a failure building the outbound request.
func RequestSetup(message string, err error) *Error {
	return &Error{Code: http.StatusInternalServerError, Kind: KindRequestSetup, Message: message, Err: err}
}

// KindOf returns the carrier error kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTimeout reports whether err is a transport error caused by a deadline.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTransport && e.TimedOut
}

// ValidationError collects field-level input failures keyed by JSON field path
// (e.g. "shipment.ship_to.postal_code").
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	paths := make([]string, 0, len(e.Fields))
	for p := range e.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		parts = append(parts, p+": "+e.Fields[p])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a failure for path, keeping the first reason seen.
func (e *ValidationError) Add(path, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[path]; !ok {
		e.Fields[path] = reason
	}
}

// Has reports whether path failed validation.
func (e *ValidationError) Has(path string) bool {
	_, ok := e.Fields[path]
	return ok
}

// ErrInternalServer is rendered for errors that carry no status of their own.
var ErrInternalServer = New(http.StatusInternalServerError, "Internal server error", nil)

// ErrorMiddleware renders the last error pushed with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var verr *ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Validation error", "fields": verr.Fields})
			c.Abort()
			return
		}

		var appErr *Error
		if !errors.As(err, &appErr) {
			appErr = New(ErrInternalServer.Code, ErrInternalServer.Message, err)
		}
		c.JSON(appErr.Code, appErr)
		c.Abort()
	}
}
