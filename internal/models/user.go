package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ResourceUser is the authorization kind of User records.
const ResourceUser = "user"

// ProviderGoogle is the only OAuth provider wired today.
const ProviderGoogle = "google"

var (
	// ErrEmailRequired is returned when saving a user without an email address.
	ErrEmailRequired = errors.New("email address is required")
	// ErrCredentialRequired is returned when a user has neither a password nor an OAuth identity.
	ErrCredentialRequired = errors.New("a password is required unless an OAuth identity is linked")
	// ErrInvalidRole is returned when saving a role outside the enumeration.
	ErrInvalidRole = errors.New("invalid role")
)

type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	EmailAddress   string    `gorm:"uniqueIndex;not null" json:"email_address"`
	Name           string    `json:"name"`
	Nickname       string    `json:"nickname"`
	PhoneNumber    string    `gorm:"size:32" json:"phone_number"`
	PasswordDigest string    `json:"-"`
	Role           Role      `gorm:"not null;default:0;index" json:"role"`
	Provider       *string   `gorm:"uniqueIndex:idx_users_provider_uid" json:"provider,omitempty"`
	UID            *string   `gorm:"column:uid;uniqueIndex:idx_users_provider_uid" json:"-"`
	AvatarURL      string    `json:"avatar_url"`
	Sessions       []Session `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// BeforeSave enforces the identity invariants on every insert and update.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.EmailAddress = NormalizeEmail(u.EmailAddress)
	if u.EmailAddress == "" {
		return ErrEmailRequired
	}
	if !u.Role.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidRole, int(u.Role))
	}
	if u.PasswordDigest == "" && !u.OAuthLinked() {
		return ErrCredentialRequired
	}
	return nil
}

// Persisted reports whether the user has a database row.
func (u *User) Persisted() bool {
	return u != nil && u.ID != 0
}

// OAuthLinked reports whether a provider identity is attached.
func (u *User) OAuthLinked() bool {
	return u.Provider != nil && *u.Provider != "" && u.UID != nil && *u.UID != ""
}

// HasPassword reports whether a password credential is set.
func (u *User) HasPassword() bool {
	return u.PasswordDigest != ""
}

// LinkOAuth attaches a provider identity.
func (u *User) LinkOAuth(provider, uid string) {
	u.Provider = &provider
	u.UID = &uid
}

// UnlinkOAuth detaches the provider identity.
func (u *User) UnlinkOAuth() {
	u.Provider = nil
	u.UID = nil
}

// DisplayName prefers the nickname, then the name, then the email.
func (u *User) DisplayName() string {
	switch {
	case u.Nickname != "":
		return u.Nickname
	case u.Name != "":
		return u.Name
	default:
		return u.EmailAddress
	}
}

var avatarSizePattern = regexp.MustCompile(`=s\d+-c$`)

// AvatarURLWithSize rewrites the Google size suffix (=sNN-c) of the avatar.
func (u *User) AvatarURLWithSize(size int) string {
	if u.AvatarURL == "" {
		return ""
	}
	return avatarSizePattern.ReplaceAllString(u.AvatarURL, fmt.Sprintf("=s%d-c", size))
}

// ResourceKind implements policy.Resource.
func (u *User) ResourceKind() string { return ResourceUser }

// OwnerID implements policy.Owned: a user record is owned by itself.
func (u *User) OwnerID() uint { return u.ID }
