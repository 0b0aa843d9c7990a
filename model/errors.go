package model

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema is matched by every SchemaError.
	ErrSchema = errors.New("invalid entity type")
	// ErrCapability is matched by every CapabilityError.
	ErrCapability = errors.New("missing capability")
	// ErrNotFound is returned by key lookups without a match.
	ErrNotFound = errors.New("entity not found")
)

// SchemaError is a malformed entity type, detected before any I/O.
type SchemaError struct {
	Type   string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid entity type %s: %s", e.Type, e.Reason)
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// CapabilityError is an operation requested on a type lacking the capability.
type CapabilityError struct {
	Type       string
	Capability Capability
}

func (e *CapabilityError) Error() string {
	switch e.Capability {
	case CapabilityEmbeddings:
		return fmt.Sprintf("entity type %s does not support vector search as there are no embedding columns", e.Type)
	case CapabilityIdentity:
		return fmt.Sprintf("entity type %s has no named identity", e.Type)
	}
	return fmt.Sprintf("entity type %s lacks capability %s", e.Type, e.Capability)
}

func (e *CapabilityError) Is(target error) bool {
	return target == ErrCapability
}
