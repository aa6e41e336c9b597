// Package apperr carries typed business failures from the point of
// detection to the transport boundary without translation layers.
package apperr

import (
	"errors"
	"fmt"
)

// Error is a client-correctable or internal failure with a stable
// integer code and a human-readable reason.
type Error struct {
	Code   int
	Reason string
	cause  error
}

// New creates a typed failure with the given code and reason.
func New(code int, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

// Wrap attaches a cause to a typed failure.
func Wrap(code int, reason string, cause error) *Error {
	return &Error{Code: code, Reason: reason, cause: cause}
}

// Internal wraps an unexpected error as a generic internal failure.
// The cause is kept for logging but never exposed to the client.
func Internal(cause error) *Error {
	return &Error{Code: 500, Reason: "内部错误", cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d: %s: %v", e.Code, e.Reason, e.cause)
	}
	return fmt.Sprintf("%d: %s", e.Code, e.Reason)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on code and reason so sentinel failures compare with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code && e.Reason == other.Reason
}

// From extracts a typed failure from err, downgrading anything else to a
// generic internal failure.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// Shared sentinel failures. The reasons are part of the client contract
// and must not change wording.
var (
	ErrSessionNotFound = New(400, "会话不存在")
	ErrInvalidNodeID   = New(400, "无效的节点ID")
	ErrNodeNotFound    = New(400, "指定的节点不存在")
	ErrEmptyQuestion   = New(400, "节点问题内容为空")
	ErrMalformedAnswer = New(400, "答案格式不正确")
	ErrUnauthenticated = New(401, "用户未认证，请先获取用户Token")
	ErrUnknownActor    = New(401, "用户不存在，请重新获取用户Token")
)
