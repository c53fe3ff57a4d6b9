// Package contract defines the agent-facing envelope: caller identity,
// request and response shapes, and the closed set of error codes.
package contract

import (
	"slices"
	"time"
)

type Role string

const (
	RoleReader Role = "reader"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// AgentContext is the pre-established identity of a caller.
type AgentContext struct {
	AgentID  string
	ReadOnly bool
	Roles    []Role
}

func NewAgentContext(agentID string, roles ...Role) AgentContext {
	return AgentContext{AgentID: agentID, Roles: roles}
}

// HasRole reports whether the context holds role. Admin implies editor.
func (a AgentContext) HasRole(role Role) bool {
	if slices.Contains(a.Roles, role) {
		return true
	}
	return role == RoleEditor && slices.Contains(a.Roles, RoleAdmin)
}

// CanRead reports whether any role is granted.
func (a AgentContext) CanRead() bool { return len(a.Roles) > 0 }

// CanMutate requires the editor role and a writable context.
func (a AgentContext) CanMutate() bool { return !a.ReadOnly && a.HasRole(RoleEditor) }

type ErrorCode string

const (
	ErrForbidden             ErrorCode = "forbidden"
	ErrNotFound              ErrorCode = "not_found"
	ErrConflict              ErrorCode = "conflict"
	ErrRateLimited           ErrorCode = "rate_limited"
	ErrInvalidArgument       ErrorCode = "invalid_argument"
	ErrDeserializationFailed ErrorCode = "deserialization_failed"
	ErrInternal              ErrorCode = "internal_error"
)

type Error struct {
	Code           ErrorCode
	Message        string
	RetryAfter     *time.Duration
	CurrentVersion *int64
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Result is the envelope every service call returns. Version is the scope
// version after the call.
type Result[T any] struct {
	Success bool
	Data    T
	Error   *Error
	Version int64
}

// Err returns the failure as an error, or nil on success.
func (r Result[T]) Err() error {
	if r.Error == nil {
		return nil
	}
	return r.Error
}

// Code returns the error code, empty on success.
func (r Result[T]) Code() ErrorCode {
	if r.Error == nil {
		return ""
	}
	return r.Error.Code
}

// MutationOptions carries the replay key and optimistic-concurrency token
// shared by every mutating request. A nil VersionToken skips the check.
type MutationOptions struct {
	IdempotencyKey string
	VersionToken   *int64
}

// Paging selects one page of a listing. An unreadable PageToken restarts at
// the first page.
type Paging struct {
	PageSize  int
	PageToken string
}

type Page[T any] struct {
	Items         []T
	NextPageToken *string
	TotalCount    int
}

// AuditEntry is emitted once per guarded call.
type AuditEntry struct {
	Operation string
	AgentID   string
	Target    string
	Success   bool
	ErrorCode ErrorCode
	Message   string
	Timestamp time.Time
}
