// Package rtp implements the remote tool-provider transport: a JSON-RPC 2.0
// client over HTTP with optional SSE streaming, session affinity, pluggable
// auth, and a background health monitor for registered providers.
package rtp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HyphaGroup/oubliette/internal/logger"
)

// Transport errors.
var (
	ErrConnectionFailed = errors.New("connection failed")
	ErrNotConnected     = errors.New("transport not connected")
	ErrTransportError   = errors.New("transport error")
)

// ConnectionTimeoutError carries the configured timeout that elapsed.
type ConnectionTimeoutError struct {
	Milliseconds int64
}

func (e *ConnectionTimeoutError) Error() string {
	return fmt.Sprintf("connection timeout after %dms", e.Milliseconds)
}

// Protocol errors.
var (
	ErrInvalidResponse     = errors.New("invalid json-rpc response")
	ErrInitializationFailed = errors.New("initialization failed")
)

// ProtocolVersionMismatchError is logged and tolerated, never returned as a
// connect() failure (see Design Notes: mismatch is warning-only).
type ProtocolVersionMismatchError struct {
	Expected, Actual string
}

func (e *ProtocolVersionMismatchError) Error() string {
	return fmt.Sprintf("protocol version mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// JsonRpcError mirrors a JSON-RPC error object verbatim; the core does not
// interpret specific code ranges.
type JsonRpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    interface{}     `json:"data,omitempty"`
}

func (e *JsonRpcError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

// Auth errors.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrTokenExpired         = errors.New("token expired")
	ErrInvalidCredentials   = errors.New("invalid credentials")
)

// Operation errors.
var (
	ErrToolNotFound       = errors.New("tool not found")
	ErrToolExecutionFailed = errors.New("tool execution failed")
	ErrResourceNotFound   = errors.New("resource not found")
	ErrPromptNotFound     = errors.New("prompt not found")
)

// Health errors.
var (
	ErrHealthCheckFailed = errors.New("health check failed")
	ErrServerUnhealthy   = errors.New("server unhealthy")
)

// Serialization errors.
var (
	ErrSerialization   = errors.New("serialization error")
	ErrDeserialization = errors.New("deserialization error")
)

// Configuration errors.
var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrServerNotFound = errors.New("server not found")
)

// Lifecycle errors (session kernel, reused by transport-adjacent callers
// that also interact with skills/tasks through the same host boundary).
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExists       = errors.New("session already exists")
	ErrMaxSessionsReached  = errors.New("maximum session count reached")
	ErrSessionNotActive    = errors.New("session not active")
	ErrTaskNotFound        = errors.New("task not found")
	ErrTaskNotCancellable  = errors.New("task is not cancellable")
)

// Generic.
var (
	ErrInternal   = errors.New("internal error")
	ErrCancelled  = errors.New("operation cancelled")
)

// sensitivePatterns flag error text that may carry secret material; matches
// are logged in full and replaced by a generic message before crossing the
// host-command boundary.
var sensitivePatterns = []string{
	"bearer",
	"api_key",
	"apikey",
	"token",
	"password",
	"secret",
	"credential",
	"authorization",
}

var internalErrorPatterns = []string{
	"connection refused",
	"no such host",
	"i/o timeout",
	"context deadline exceeded",
	"context canceled",
	"eof",
}

var userFacingPatterns = []string{
	"not found",
	"already exists",
	"invalid",
	"required",
	"must be",
	"cannot be",
	"is not",
	"exceeded",
	"limit",
}

// Sanitize returns a client-safe error for the given operation. Internal
// details are always logged; only a generic message crosses the boundary
// when the error text looks like it might carry secret or internal detail.
func Sanitize(err error, operation string) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())

	for _, pattern := range sensitivePatterns {
		if strings.Contains(msg, pattern) {
			logger.Error("%s failed (sensitive): %v", operation, err)
			return fmt.Errorf("%s failed: internal configuration error", operation)
		}
	}

	for _, pattern := range internalErrorPatterns {
		if strings.Contains(msg, pattern) {
			logger.Error("%s failed (internal): %v", operation, err)
			return fmt.Errorf("%s failed: internal error", operation)
		}
	}

	for _, pattern := range userFacingPatterns {
		if strings.Contains(msg, pattern) {
			return err
		}
	}

	logger.Error("%s failed: %v", operation, err)
	return fmt.Errorf("%s failed: an unexpected error occurred", operation)
}
