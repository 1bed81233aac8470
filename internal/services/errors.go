package services

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrInvitationMismatch   = errors.New("invalid invitation code")
	ErrPendingStateMissing  = errors.New("no pending registration, please sign in with Google again")
	ErrUniqueConstraintRace = errors.New("this account was created concurrently, please sign in again")
	ErrPasswordRequired     = errors.New("please set a password before unlinking your Google account")
	ErrNotLinked            = errors.New("no Google account is linked")
	ErrLinkFailed           = errors.New("unable to link your Google account")
	ErrInvalidCredentials   = errors.New("invalid email address or password")
	ErrRoleCeiling          = errors.New("you cannot grant a role above your own")
	ErrInvalidResetToken    = errors.New("password reset link is invalid or has expired")
	ErrEmailTaken           = errors.New("email address has already been taken")
	ErrPasswordTooShort     = errors.New("password is too short (minimum is 8 characters)")
)

const pgUniqueViolation = "23505"

// isUniqueViolation recognizes duplicate key errors from postgres and sqlite,
// whether or not gorm translated them.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}
