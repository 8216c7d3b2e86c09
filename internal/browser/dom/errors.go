// internal/browser/dom/errors.go
package dom

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleHandle is returned when a handle does not name a node in the document.
	ErrStaleHandle = errors.New("dom: handle does not name a live node")
	// ErrReadOnlyScope is returned when a mutation is attempted through a read scope.
	ErrReadOnlyScope = errors.New("dom: mutation attempted under a read scope")
)

// DOMError is a typed DOM exception carrying the exception name (e.g. "SyntaxError").
type DOMError struct {
	Name    string
	Message string
}

// Error implements the error interface.
func (e *DOMError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// ErrSyntax creates a SyntaxError.
func ErrSyntax(message string) *DOMError {
	return &DOMError{Name: "SyntaxError", Message: message}
}

// ErrHierarchyRequest creates a HierarchyRequestError.
func ErrHierarchyRequest(message string) *DOMError {
	return &DOMError{Name: "HierarchyRequestError", Message: message}
}

// ErrInvalidCharacter creates an InvalidCharacterError.
func ErrInvalidCharacter(message string) *DOMError {
	return &DOMError{Name: "InvalidCharacterError", Message: message}
}
