package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"hikeclub/internal/models"
)

// PasswordService runs the emailed password reset flow.
type PasswordService struct {
	users    *UserService
	sessions *SessionService
	tokens   *TokenIssuer
	mailer   Mailer
	siteURL  string
	logger   *zap.Logger
}

func NewPasswordService(users *UserService, sessions *SessionService, tokens *TokenIssuer, mailer Mailer, siteURL string, logger *zap.Logger) *PasswordService {
	return &PasswordService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		mailer:   mailer,
		siteURL:  strings.TrimRight(siteURL, "/"),
		logger:   logger,
	}
}

// ResetLink returns a signed reset URL for u.
func (s *PasswordService) ResetLink(u *models.User) (string, error) {
	token, err := s.tokens.IssueReset(u.ID, u.PasswordDigest)
	if err != nil {
		return "", err
	}
	return s.siteURL + "/passwords/" + token, nil
}

// RequestReset mails a reset link when the address belongs to an account.
// Unknown addresses are not reported.
func (s *PasswordService) RequestReset(ctx context.Context, email string) error {
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrRecordNotFound) {
		s.logger.Info("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	link, err := s.ResetLink(u)
	if err != nil {
		return err
	}
	s.mailer.SendPasswordResetEmail(u.EmailAddress, u.DisplayName(), link)
	return nil
}

// SendGuideInvite mails a freshly created guide the link to pick a password.
func (s *PasswordService) SendGuideInvite(u *models.User) error {
	link, err := s.ResetLink(u)
	if err != nil {
		return err
	}
	s.mailer.SendGuideWelcomeEmail(u.EmailAddress, u.DisplayName(), link)
	return nil
}

// Verify returns the user a reset token was issued for.
func (s *PasswordService) Verify(ctx context.Context, token string) (*models.User, error) {
	id, fp, err := s.tokens.VerifyReset(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Find(ctx, id)
	if err != nil {
		return nil, ErrInvalidResetToken
	}
	if fingerprint(u.PasswordDigest) != fp {
		return nil, ErrInvalidResetToken
	}
	return u, nil
}

// Reset sets the new password and ends every session of the account.
func (s *PasswordService) Reset(ctx context.Context, token, password string) (*models.User, error) {
	u, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetPassword(ctx, u, password); err != nil {
		return nil, err
	}
	if err := s.sessions.TerminateAll(ctx, u.ID); err != nil {
		return nil, err
	}
	s.logger.Info("password reset", zap.Uint("user_id", u.ID))
	return u, nil
}
