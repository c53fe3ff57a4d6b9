package tree

import "errors"

var (
	// ErrNotFound indicates the referenced node does not exist in the tree.
	ErrNotFound = errors.New("node not found")

	// ErrCycle indicates a reparent would place a node under its own descendant.
	ErrCycle = errors.New("operation would create a cycle")

	// ErrRootImmutable indicates an operation that cannot be applied to the root.
	ErrRootImmutable = errors.New("root node cannot be moved or removed")

	// ErrInvalidMove indicates a move relative to the node itself.
	ErrInvalidMove = errors.New("invalid move target")

	// ErrReservedProperty indicates a write to NodeId, Children, Parent,
	// PayloadType or an internal underscore-prefixed name.
	ErrReservedProperty = errors.New("reserved property")

	// ErrUnknownProperty indicates the payload type declares no such property.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrImmutableProperty indicates a write to a property that is fixed after construction.
	ErrImmutableProperty = errors.New("immutable property")

	// ErrInvalidValue indicates a value that cannot be coerced to the property kind.
	ErrInvalidValue = errors.New("invalid property value")

	// ErrUnknownType indicates a payload type name missing from the registry.
	ErrUnknownType = errors.New("unknown payload type")

	// ErrDuplicateType indicates a payload type registered twice.
	ErrDuplicateType = errors.New("payload type already registered")

	// ErrDuplicateID indicates a node ID already present in the tree.
	ErrDuplicateID = errors.New("duplicate node id")

	// ErrIdentityMismatch indicates an attempt to reassign NodeId or PayloadType
	// of an existing node.
	ErrIdentityMismatch = errors.New("identity field cannot be reassigned")
)
