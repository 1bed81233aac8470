package models

import (
	"fmt"
	"strings"
)

// Role is the privilege tier of a user, persisted as a small integer.
// Ordering matters: user < moderator < admin.
type Role int

const (
	RoleUser Role = iota
	RoleModerator
	RoleAdmin
)

// Roles lists every role, least privileged first.
var Roles = []Role{RoleUser, RoleModerator, RoleAdmin}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleModerator:
		return "moderator"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	return r >= RoleUser && r <= RoleAdmin
}

// AtLeast reports whether r ranks at or above other.
func (r Role) AtLeast(other Role) bool {
	return r >= other
}

// Humanize returns the role name with a capital letter, for flash messages.
func (r Role) Humanize() string {
	s := r.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseRole accepts a role name ("admin") or its ordinal ("2").
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, r := range Roles {
		if s == r.String() || s == fmt.Sprint(int(r)) {
			return r, nil
		}
	}
	return RoleUser, fmt.Errorf("unknown role %q", s)
}

// MarshalText encodes the role by name in JSON payloads.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name or ordinal.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
