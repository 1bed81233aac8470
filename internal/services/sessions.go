package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hikeclub/internal/models"
)

// SessionService persists login sessions. The cookie only carries the id.
type SessionService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewSessionService(db *gorm.DB, logger *zap.Logger) *SessionService {
	return &SessionService{db: db, logger: logger}
}

// Start opens a session for u.
func (s *SessionService) Start(ctx context.Context, u *models.User, ip, userAgent string) (*models.Session, error) {
	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return sess, nil
}

// Resume returns the user of a live session.
func (s *SessionService) Resume(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, ErrRecordNotFound
	}
	var sess models.Session
	if err := s.db.WithContext(ctx).First(&sess, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, sess.UserID).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Terminate deletes a session; unknown ids are ignored.
func (s *SessionService) Terminate(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.db.WithContext(ctx).Delete(&models.Session{}, "id = ?", id).Error
}

// TerminateAll deletes every session of a user, e.g. after a password reset.
func (s *SessionService) TerminateAll(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{}).Error
	if err == nil {
		s.logger.Info("sessions terminated", zap.Uint("user_id", userID))
	}
	return err
}
