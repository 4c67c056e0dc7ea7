package errors

import (
	"errors"
	"fmt"

	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
)

// ErrorCode 错误码类型
type ErrorCode string

const (
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeAlreadyExists  ErrorCode = "ALREADY_EXISTS"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"

	// Security/orchestration error kinds — spec.md §7.
	CodeSecurityViolation   ErrorCode = "SECURITY_VIOLATION"
	CodePolicyViolation     ErrorCode = "POLICY_VIOLATION"
	CodeToolError           ErrorCode = "TOOL_ERROR"
	CodeToolBlocked         ErrorCode = "TOOL_BLOCKED"
	CodeProvenanceError     ErrorCode = "PROVENANCE_ERROR"
	CodeSessionLocked       ErrorCode = "SESSION_LOCKED"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeExternalUnavailable ErrorCode = "EXTERNAL_UNAVAILABLE"
	CodeValidation          ErrorCode = "VALIDATION_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInvalidInputError 创建无效输入错误
func NewInvalidInputError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
	}
}

// NewAlreadyExistsError 创建已存在错误
func NewAlreadyExistsError(message string) *AppError {
	return &AppError{
		Code:    CodeAlreadyExists,
		Message: message,
	}
}

// NewInternalError 创建内部错误
func NewInternalError(message string) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
	}
}

// NewInternalErrorWithCause 创建带原因的内部错误
func NewInternalErrorWithCause(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Err:     cause,
	}
}

// IsNotFound 判断是否为未找到错误
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsInvalidInput 判断是否为无效输入错误
func IsInvalidInput(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeInvalidInput
	}
	return false
}

// ViolationKind distinguishes where a SecurityViolation was raised.
type ViolationKind string

const (
	ViolationInput      ViolationKind = "input"
	ViolationOutput     ViolationKind = "output"
	ViolationAsciiGate  ViolationKind = "ascii_gate"
	ViolationLengthGate ViolationKind = "length_gate"
	ViolationEcho       ViolationKind = "echo_scanner"
)

// SecurityViolation is raised when a scanner blocks input/output or the
// ASCII/length gate fires. It is never recovered — it always surfaces as a
// blocked task result. RawResponse carries the worker's raw text for audit
// purposes only; callers must never include it in a user-facing message.
type SecurityViolation struct {
	Kind        ViolationKind
	Message     string
	ScanResults []valueobject.ScanResult
	RawResponse string
}

func (e *SecurityViolation) Error() string {
	return fmt.Sprintf("[SECURITY_VIOLATION:%s] %s", e.Kind, e.Message)
}

func NewSecurityViolation(kind ViolationKind, message string, results ...valueobject.ScanResult) *SecurityViolation {
	return &SecurityViolation{Kind: kind, Message: message, ScanResults: results}
}

func (e *SecurityViolation) WithRawResponse(raw string) *SecurityViolation {
	e.RawResponse = raw
	return e
}

func IsSecurityViolation(err error) bool {
	var v *SecurityViolation
	return errors.As(err, &v)
}

// AsSecurityViolation extracts the *SecurityViolation from err, if any.
func AsSecurityViolation(err error) (*SecurityViolation, bool) {
	var v *SecurityViolation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// PolicyViolation is raised when the policy engine denies a file or command
// operation. Surfaced as a step-level Blocked result, never a fatal error.
type PolicyViolation struct {
	Reason string
	Path   string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("[POLICY_VIOLATION] %s: %s", e.Reason, e.Path)
}

func NewPolicyViolation(reason, path string) *PolicyViolation {
	return &PolicyViolation{Reason: reason, Path: path}
}

func IsPolicyViolation(err error) bool {
	var v *PolicyViolation
	return errors.As(err, &v)
}

// ToolError signals a tool runtime failure (as opposed to a policy denial).
type ToolError struct {
	ToolName string
	Err      error
}

func (e *ToolError) Error() string { return fmt.Sprintf("tool %q failed: %v", e.ToolName, e.Err) }
func (e *ToolError) Unwrap() error { return e.Err }

func NewToolError(toolName string, cause error) *ToolError {
	return &ToolError{ToolName: toolName, Err: cause}
}

// ToolBlockedError signals the policy engine denied a tool's operation.
type ToolBlockedError struct {
	ToolName string
	Reason   string
}

func (e *ToolBlockedError) Error() string {
	return fmt.Sprintf("tool %q blocked: %s", e.ToolName, e.Reason)
}

func NewToolBlockedError(toolName, reason string) *ToolBlockedError {
	return &ToolBlockedError{ToolName: toolName, Reason: reason}
}

// ProvenanceError wraps a storage-layer failure in the provenance store.
// Treated as fatal for the containing task — no further steps execute on
// partial state.
type ProvenanceError struct {
	Op  string
	Err error
}

func (e *ProvenanceError) Error() string { return fmt.Sprintf("provenance store %s: %v", e.Op, e.Err) }
func (e *ProvenanceError) Unwrap() error { return e.Err }

func NewProvenanceError(op string, cause error) *ProvenanceError {
	return &ProvenanceError{Op: op, Err: cause}
}

// SessionLockedError is returned immediately when a request targets an
// already-locked session.
type SessionLockedError struct {
	SessionID string
}

func (e *SessionLockedError) Error() string {
	return fmt.Sprintf("session %q is locked", e.SessionID)
}

func NewSessionLockedError(sessionID string) *SessionLockedError {
	return &SessionLockedError{SessionID: sessionID}
}

// TimeoutError signals a deadline elapsed (worker call, sidecar call,
// approval wait). Surfaced as a step-level Error.
type TimeoutError struct {
	Op      string
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

func NewTimeoutError(op, timeout string) *TimeoutError {
	return &TimeoutError{Op: op, Timeout: timeout}
}

// ExternalUnavailableError signals the planner, worker, or sidecar refused
// or crashed. Surfaced as Error with retry guidance.
type ExternalUnavailableError struct {
	Service string
	Err     error
	Retry   bool
}

func (e *ExternalUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v (retry=%t)", e.Service, e.Err, e.Retry)
}
func (e *ExternalUnavailableError) Unwrap() error { return e.Err }

func NewExternalUnavailableError(service string, cause error, retry bool) *ExternalUnavailableError {
	return &ExternalUnavailableError{Service: service, Err: cause, Retry: retry}
}

// ValidationError signals an inbound request violated field constraints.
// Surfaced before any scanning takes place.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
