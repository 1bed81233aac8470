package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer       = "hikeclub"
	tokenTypePending  = "pending_oauth"
	tokenTypeReset    = "password_reset"
	digestFingerprint = 16
)

// PendingRegistration is the OAuth assertion held between the callback and
// the invitation code prompt. It only ever lives in a signed token.
type PendingRegistration struct {
	Provider  string `json:"provider"`
	UID       string `json:"uid"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type pendingClaims struct {
	jwt.RegisteredClaims
	Type string `json:"type"`
	PendingRegistration
}

type resetClaims struct {
	jwt.RegisteredClaims
	Type        string `json:"type"`
	Fingerprint string `json:"pwd"`
}

// TokenIssuer signs the short-lived HS256 tokens of the auth flows.
type TokenIssuer struct {
	secret     []byte
	pendingTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, pendingTTL, resetTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		pendingTTL: pendingTTL,
		resetTTL:   resetTTL,
		now:        time.Now,
	}
}

func (t *TokenIssuer) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := t.now().UTC()
	return jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

func (t *TokenIssuer) sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) parse(raw string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(raw, claims,
		func(tok *jwt.Token) (any, error) {
			return t.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	return err
}

// IssuePending signs a pending registration.
func (t *TokenIssuer) IssuePending(p PendingRegistration) (string, error) {
	return t.sign(pendingClaims{
		RegisteredClaims:    t.registered(p.Email, t.pendingTTL),
		Type:                tokenTypePending,
		PendingRegistration: p,
	})
}

// VerifyPending returns the registration of a valid, unexpired token.
// Any failure is reported as ErrPendingStateMissing.
func (t *TokenIssuer) VerifyPending(raw string) (*PendingRegistration, error) {
	if raw == "" {
		return nil, ErrPendingStateMissing
	}
	var claims pendingClaims
	if err := t.parse(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPendingStateMissing, err)
	}
	if claims.Type != tokenTypePending {
		return nil, ErrPendingStateMissing
	}
	return &claims.PendingRegistration, nil
}

// IssueReset signs a password reset token bound to the current digest, so
// it stops working once the password changes.
func (t *TokenIssuer) IssueReset(userID uint, passwordDigest string) (string, error) {
	return t.sign(resetClaims{
		RegisteredClaims: t.registered(strconv.FormatUint(uint64(userID), 10), t.resetTTL),
		Type:             tokenTypeReset,
		Fingerprint:      fingerprint(passwordDigest),
	})
}

// VerifyReset returns the user id and digest fingerprint of a reset token.
func (t *TokenIssuer) VerifyReset(raw string) (uint, string, error) {
	var claims resetClaims
	if err := t.parse(raw, &claims); err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrInvalidResetToken, err)
	}
	if claims.Type != tokenTypeReset {
		return 0, "", ErrInvalidResetToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, "", errors.Join(ErrInvalidResetToken, err)
	}
	return uint(id), claims.Fingerprint, nil
}

func fingerprint(digest string) string {
	sum := sha256.Sum256([]byte(digest))
	return hex.EncodeToString(sum[:])[:digestFingerprint]
}
