// internal/browser/jsbind/errors.go
package jsbind

import (
	"errors"
	"fmt"
)

// Typed errors let callers such as the script runtime classify binding failures
// with errors.Is/errors.As instead of matching strings.

var (
	ErrDuplicateInterface = errors.New("jsbind: interface already registered")
	ErrUnknownParent      = errors.New("jsbind: parent interface not registered")
	ErrUnknownInterface   = errors.New("jsbind: interface not registered")
	ErrUnknownClass       = errors.New("jsbind: instance class not registered")
	ErrDuplicateProperty  = errors.New("jsbind: property already defined on interface")
	ErrInvalidDescriptor  = errors.New("jsbind: invalid property descriptor")
	ErrRegistryFrozen     = errors.New("jsbind: registry is frozen")

	// ErrNotElement is returned by Wrap for nodes that are not elements.
	ErrNotElement = errors.New("jsbind: node is not an element")
	// ErrNotBound means the receiver carries no bundle (class confusion).
	ErrNotBound = errors.New("jsbind: receiver is not bound to a node")
	// ErrNoReceiver means a native was called without an object receiver.
	ErrNoReceiver = errors.New("jsbind: missing receiver")
	ErrRealmClosed = errors.New("jsbind: realm is closed")
	// ErrOutOfRange is raised by conversions under the reject overflow policy.
	ErrOutOfRange = errors.New("jsbind: value out of range")
)

// VariantMismatchError is returned when a variant-specific accessor runs against
// a node of another variant.
type VariantMismatchError struct {
	Property string
	Want     string
	Got      string
}

// Error implements the error interface.
func (e *VariantMismatchError) Error() string {
	return fmt.Sprintf("'%s' requires %s, receiver is %s", e.Property, e.Want, e.Got)
}

// InstantiationError reports a failure to construct a bound object.
type InstantiationError struct {
	Interface string
	Err       error
}

// Error implements the error interface.
func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate %s: %v", e.Interface, e.Err)
}

// Unwrap provides the underlying error for use with errors.Is/As.
func (e *InstantiationError) Unwrap() error {
	return e.Err
}
