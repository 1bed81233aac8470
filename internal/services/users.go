package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hikeclub/internal/models"
	"hikeclub/internal/policy"
	"hikeclub/internal/utils"
)

const guidePasswordLength = 16

type UserService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewUserService(db *gorm.DB, logger *zap.Logger) *UserService {
	return &UserService{db: db, logger: logger}
}

// SignupInput is the self-service registration form.
type SignupInput struct {
	EmailAddress string `form:"email_address" json:"email_address" binding:"required,email"`
	Name         string `form:"name" json:"name" binding:"max=100"`
	Password     string `form:"password" json:"password" binding:"required"`
}

// ProfileInput holds the editable fields of the account page. Empty values
// leave the field unchanged.
type ProfileInput struct {
	Nickname    string `form:"nickname" json:"nickname" binding:"max=50"`
	PhoneNumber string `form:"phone_number" json:"phone_number" binding:"omitempty,phone"`
	Password    string `form:"password" json:"password"`
}

// GuideInput is the quick-creation payload for hike guides.
type GuideInput struct {
	EmailAddress string `form:"email_address" json:"email_address" binding:"required,email"`
	Name         string `form:"name" json:"name" binding:"required,max=100"`
	Nickname     string `form:"nickname" json:"nickname" binding:"max=50"`
}

// Signup creates a password account with the default role.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	u := &models.User{
		EmailAddress: in.EmailAddress,
		Name:         utils.CleanText(in.Name),
		Role:         models.RoleUser,
	}
	if err := setPassword(u, in.Password); err != nil {
		return nil, err
	}
	if err := s.create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", zap.Uint("user_id", u.ID))
	return u, nil
}

// Authenticate checks a password credential.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, u.PasswordDigest) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) Find(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email_address = ?", models.NormalizeEmail(email)).First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// FindByProvider looks up an account by its linked OAuth identity.
func (s *UserService) FindByProvider(ctx context.Context, provider, uid string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("provider = ? AND uid = ?", provider, uid).First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UpdateProfile applies the account page form. u is left untouched unless
// the update is saved.
func (s *UserService) UpdateProfile(ctx context.Context, u *models.User, in ProfileInput) error {
	next := *u
	if in.Nickname != "" {
		next.Nickname = utils.CleanText(in.Nickname)
	}
	if in.PhoneNumber != "" {
		next.PhoneNumber = in.PhoneNumber
	}
	if in.Password != "" {
		if err := setPassword(&next, in.Password); err != nil {
			return err
		}
	}
	if err := s.save(ctx, &next); err != nil {
		return err
	}
	*u = next
	return nil
}

// SetPassword replaces the password credential.
func (s *UserService) SetPassword(ctx context.Context, u *models.User, password string) error {
	if err := setPassword(u, password); err != nil {
		return err
	}
	return s.save(ctx, u)
}

// UpdateRole changes the role of target. The actor may neither grant a role
// above their own nor change someone ranked above them.
func (s *UserService) UpdateRole(ctx context.Context, actor, target *models.User, role models.Role) error {
	if actor.ID == target.ID {
		return policy.ErrSelfActionBlocked
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %d", models.ErrInvalidRole, int(role))
	}
	if !actor.Role.AtLeast(role) || !actor.Role.AtLeast(target.Role) {
		return ErrRoleCeiling
	}
	err := s.db.WithContext(ctx).Model(target).Update("role", role).Error
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	target.Role = role
	s.logger.Info("role updated",
		zap.Uint("actor_id", actor.ID),
		zap.Uint("user_id", target.ID),
		zap.String("role", role.String()))
	return nil
}

// AssignRole sets the role of the account behind email without an acting
// user. It backs the operator command that bootstraps the first admin.
func (s *UserService) AssignRole(ctx context.Context, email string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidRole, int(role))
	}
	u, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(u).Update("role", role).Error; err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	u.Role = role
	s.logger.Info("role assigned", zap.Uint("user_id", u.ID), zap.String("role", role.String()))
	return u, nil
}

// CreateGuide creates a user with a random temporary password. The returned
// account is expected to reset its password through the emailed link.
func (s *UserService) CreateGuide(ctx context.Context, in GuideInput) (*models.User, error) {
	tmp, err := utils.RandomAlphanumeric(guidePasswordLength)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		EmailAddress: in.EmailAddress,
		Name:         utils.CleanText(in.Name),
		Nickname:     utils.CleanText(in.Nickname),
		Role:         models.RoleUser,
	}
	if err := setPassword(u, tmp); err != nil {
		return nil, err
	}
	if err := s.create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("guide created", zap.Uint("user_id", u.ID))
	return u, nil
}

// Destroy deletes the user together with every session it owns.
func (s *UserService) Destroy(ctx context.Context, u *models.User) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", u.ID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.HikeHistory{}).Where("user_id = ?", u.ID).Update("user_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, u.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", u.ID, err)
	}
	s.logger.Info("user deleted", zap.Uint("user_id", u.ID))
	return nil
}

// List returns the users within scope, newest first.
func (s *UserService) List(ctx context.Context, scope policy.Scope) ([]models.User, error) {
	var users []models.User
	err := scope.Apply(s.db.WithContext(ctx), "id").Order("created_at DESC").Order("id DESC").Find(&users).Error
	return users, err
}

func (s *UserService) create(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *UserService) save(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func setPassword(u *models.User, password string) error {
	if len(password) < utils.MinPasswordLength {
		return ErrPasswordTooShort
	}
	digest, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordDigest = digest
	return nil
}
