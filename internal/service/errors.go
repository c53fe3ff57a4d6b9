package service

import (
	"errors"
	"time"

	"github.com/alexanderramin/arbor/internal/codec"
	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/query"
	"github.com/alexanderramin/arbor/internal/tree"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrBookmarkNotFound  = errors.New("bookmark not found")
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrIdempotencyReused = errors.New("idempotency key reused by a different operation")
)

func newError(code contract.ErrorCode, msg string) *contract.Error {
	return &contract.Error{Code: code, Message: msg}
}

func rateLimited(retryAfter time.Duration) *contract.Error {
	return &contract.Error{
		Code:       contract.ErrRateLimited,
		Message:    "rate limit exceeded, retry after " + retryAfter.String(),
		RetryAfter: &retryAfter,
	}
}

func versionConflict(current int64) *contract.Error {
	return &contract.Error{
		Code:           contract.ErrConflict,
		Message:        "version token is stale",
		CurrentVersion: &current,
	}
}

// toError maps a package error onto the closed code set. Malformed documents
// keep the decoder's position in the message.
func toError(err error) *contract.Error {
	var ce *contract.Error
	if errors.As(err, &ce) {
		return ce
	}
	return newError(codeFor(err), err.Error())
}

func codeFor(err error) contract.ErrorCode {
	switch {
	case errors.Is(err, codec.ErrMalformed):
		return contract.ErrDeserializationFailed
	case errors.Is(err, tree.ErrIdentityMismatch),
		errors.Is(err, tree.ErrImmutableProperty):
		return contract.ErrInternal
	case errors.Is(err, tree.ErrNotFound),
		errors.Is(err, ErrBookmarkNotFound),
		errors.Is(err, ErrSnapshotNotFound):
		return contract.ErrNotFound
	case errors.Is(err, ErrIdempotencyReused):
		return contract.ErrConflict
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, tree.ErrCycle),
		errors.Is(err, tree.ErrRootImmutable),
		errors.Is(err, tree.ErrInvalidMove),
		errors.Is(err, tree.ErrReservedProperty),
		errors.Is(err, tree.ErrUnknownProperty),
		errors.Is(err, tree.ErrInvalidValue),
		errors.Is(err, tree.ErrUnknownType),
		errors.Is(err, tree.ErrDuplicateID),
		errors.Is(err, query.ErrSyntax),
		errors.Is(err, query.ErrUnknownOperator),
		errors.Is(err, query.ErrUnknownMode),
		errors.Is(err, codec.ErrUnsupportedFormat):
		return contract.ErrInvalidArgument
	default:
		return contract.ErrInternal
	}
}
