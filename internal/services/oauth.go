package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"hikeclub/internal/models"
	"hikeclub/internal/utils"
)

// CallbackOutcome is where an OAuth callback leaves the visitor.
type CallbackOutcome int

const (
	// OutcomeSignedIn means an existing account matched and a session may start.
	OutcomeSignedIn CallbackOutcome = iota
	// OutcomePending means nobody matched and the invitation code is required.
	OutcomePending
)

type CallbackResult struct {
	Outcome      CallbackOutcome
	User         *models.User
	AutoLinked   bool
	PendingToken string
}

// OAuthService implements sign-in with an external identity, explicit
// account linking, and invitation-gated registration.
type OAuthService struct {
	users          *UserService
	tokens         *TokenIssuer
	invitationCode string
	logger         *zap.Logger
}

func NewOAuthService(users *UserService, tokens *TokenIssuer, invitationCode string, logger *zap.Logger) *OAuthService {
	return &OAuthService{
		users:          users,
		tokens:         tokens,
		invitationCode: invitationCode,
		logger:         logger,
	}
}

func validAssertion(a Assertion) error {
	if a.Provider == "" || a.UID == "" || models.NormalizeEmail(a.Email) == "" {
		return fmt.Errorf("incomplete %q assertion", a.Provider)
	}
	return nil
}

// HandleCallback matches the assertion by provider identity, then by email.
// An email match adopts the provider identity (auto-link). Without any match
// the assertion is parked in a pending registration token.
func (s *OAuthService) HandleCallback(ctx context.Context, a Assertion) (*CallbackResult, error) {
	if err := validAssertion(a); err != nil {
		return nil, err
	}

	u, err := s.users.FindByProvider(ctx, a.Provider, a.UID)
	if err == nil {
		return &CallbackResult{Outcome: OutcomeSignedIn, User: u}, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	u, err = s.users.FindByEmail(ctx, a.Email)
	switch {
	case err == nil:
		u.LinkOAuth(a.Provider, a.UID)
		u.AvatarURL = a.AvatarURL
		if name := utils.CleanText(a.Name); name != "" {
			u.Name = name
		}
		if err := s.users.db.WithContext(ctx).Save(u).Error; err != nil {
			if isUniqueViolation(err) {
				return nil, ErrUniqueConstraintRace
			}
			return nil, fmt.Errorf("auto-link failed: %w", err)
		}
		s.logger.Info("oauth identity auto-linked", zap.Uint("user_id", u.ID), zap.String("provider", a.Provider))
		return &CallbackResult{Outcome: OutcomeSignedIn, User: u, AutoLinked: true}, nil
	case errors.Is(err, ErrRecordNotFound):
		token, err := s.tokens.IssuePending(PendingRegistration{
			Provider:  a.Provider,
			UID:       a.UID,
			Email:     models.NormalizeEmail(a.Email),
			Name:      utils.CleanText(a.Name),
			AvatarURL: a.AvatarURL,
		})
		if err != nil {
			return nil, err
		}
		return &CallbackResult{Outcome: OutcomePending, PendingToken: token}, nil
	default:
		return nil, err
	}
}

// Link attaches the assertion to the signed-in account, skipping matching.
func (s *OAuthService) Link(ctx context.Context, current *models.User, a Assertion) error {
	if !current.Persisted() {
		return ErrLinkFailed
	}
	if err := validAssertion(a); err != nil {
		return fmt.Errorf("%w: %v", ErrLinkFailed, err)
	}

	owner, err := s.users.FindByProvider(ctx, a.Provider, a.UID)
	switch {
	case err == nil && owner.ID != current.ID:
		return fmt.Errorf("%w: identity belongs to another account", ErrLinkFailed)
	case err != nil && !errors.Is(err, ErrRecordNotFound):
		return err
	}

	current.LinkOAuth(a.Provider, a.UID)
	current.AvatarURL = a.AvatarURL
	if err := s.users.db.WithContext(ctx).Save(current).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrLinkFailed, err)
	}
	s.logger.Info("oauth identity linked", zap.Uint("user_id", current.ID), zap.String("provider", a.Provider))
	return nil
}

// Pending decodes a pending registration token.
func (s *OAuthService) Pending(token string) (*PendingRegistration, error) {
	return s.tokens.VerifyPending(token)
}

// CompleteRegistration checks the invitation code and creates the account.
// On ErrInvitationMismatch the token remains valid for another attempt.
func (s *OAuthService) CompleteRegistration(ctx context.Context, token, code string) (*models.User, error) {
	p, err := s.Pending(token)
	if err != nil {
		return nil, err
	}
	if !s.invitationMatches(code) {
		s.logger.Info("invitation code mismatch", zap.String("email", p.Email))
		return nil, ErrInvitationMismatch
	}

	u := &models.User{
		EmailAddress: p.Email,
		Name:         p.Name,
		AvatarURL:    p.AvatarURL,
		Role:         models.RoleUser,
	}
	u.LinkOAuth(p.Provider, p.UID)
	if err := s.users.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUniqueConstraintRace
		}
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	s.logger.Info("user registered through oauth", zap.Uint("user_id", u.ID), zap.String("provider", p.Provider))
	return u, nil
}

// invitationMatches compares in constant time. An unset code admits nobody.
func (s *OAuthService) invitationMatches(code string) bool {
	if s.invitationCode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(s.invitationCode)) == 1
}

// Unlink detaches the provider identity; the account must keep a password.
func (s *OAuthService) Unlink(ctx context.Context, u *models.User) error {
	if !u.HasPassword() {
		return ErrPasswordRequired
	}
	if !u.OAuthLinked() {
		return ErrNotLinked
	}
	u.UnlinkOAuth()
	if err := s.users.db.WithContext(ctx).Save(u).Error; err != nil {
		return fmt.Errorf("unlink failed: %w", err)
	}
	s.logger.Info("oauth identity unlinked", zap.Uint("user_id", u.ID))
	return nil
}
