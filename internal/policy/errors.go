package policy

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthorizationDenied is returned when no rule grants the action.
	ErrAuthorizationDenied = errors.New("you are not authorized to perform this action")
	// ErrSelfActionBlocked is returned when an actor targets their own account
	// on the administrative user-management surface.
	ErrSelfActionBlocked = errors.New("you cannot edit your own profile here")
)

// DeniedError carries the denied decision for logging. It matches
// ErrAuthorizationDenied with errors.Is.
type DeniedError struct {
	Role   string
	Action Action
	Kind   string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %s cannot %s %s", ErrAuthorizationDenied, e.Role, e.Action, e.Kind)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrAuthorizationDenied
}
