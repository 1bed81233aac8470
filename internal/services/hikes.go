package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hikeclub/internal/models"
)

// ErrDuplicateHistory is returned when a hike already has an outing that day.
var ErrDuplicateHistory = errors.New("this hike is already scheduled on that date")

type HikeInput struct {
	Number         int     `json:"number" binding:"gte=0"`
	Day            int     `json:"day" binding:"gte=0"`
	Difficulty     int     `json:"difficulty" binding:"gte=0,lte=5"`
	TrailName      string  `json:"trail_name" binding:"required,max=200"`
	StartingPoint  string  `json:"starting_point" binding:"max=200"`
	DistanceKm     float64 `json:"distance_km" binding:"gte=0"`
	ElevationGain  float64 `json:"elevation_gain" binding:"gte=0"`
	ElevationLoss  int     `json:"elevation_loss" binding:"gte=0"`
	AltitudeMin    int     `json:"altitude_min"`
	AltitudeMax    int     `json:"altitude_max" binding:"gtefield=AltitudeMin"`
	CarpoolingCost float64 `json:"carpooling_cost" binding:"gte=0"`
	OpenrunnerRef  string  `json:"openrunner_ref" binding:"max=50"`
}

type HikeHistoryInput struct {
	HikeID         uint    `json:"hike_id" binding:"required"`
	UserID         *uint   `json:"user_id"`
	HikingDate     string  `json:"hiking_date" binding:"required,datetime=2006-01-02"`
	DepartureTime  string  `json:"departure_time" binding:"omitempty,datetime=15:04"`
	DayType        string  `json:"day_type" binding:"max=32"`
	CarpoolingCost float64 `json:"carpooling_cost" binding:"gte=0"`
	OpenrunnerRef  string  `json:"openrunner_ref" binding:"max=50"`
}

type HikePathInput struct {
	HikeID      uint   `json:"hike_id" binding:"required"`
	Coordinates string `json:"coordinates" binding:"required"`
}

// HikeService stores hikes, their outings and their tracks. onChange runs
// after every successful write.
type HikeService struct {
	db       *gorm.DB
	logger   *zap.Logger
	onChange func()
}

func NewHikeService(db *gorm.DB, logger *zap.Logger, onChange func()) *HikeService {
	if onChange == nil {
		onChange = func() {}
	}
	return &HikeService{db: db, logger: logger, onChange: onChange}
}

func (s *HikeService) ListHikes(ctx context.Context) ([]models.Hike, error) {
	var hikes []models.Hike
	err := s.db.WithContext(ctx).Order("trail_name").Find(&hikes).Error
	return hikes, err
}

func (s *HikeService) FindHike(ctx context.Context, id uint) (*models.Hike, error) {
	var h models.Hike
	if err := s.db.WithContext(ctx).First(&h, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &h, nil
}

func (s *HikeService) CreateHike(ctx context.Context, in HikeInput) (*models.Hike, error) {
	h := &models.Hike{}
	applyHike(h, in)
	if err := s.db.WithContext(ctx).Create(h).Error; err != nil {
		return nil, fmt.Errorf("failed to create hike: %w", err)
	}
	s.onChange()
	return h, nil
}

func (s *HikeService) UpdateHike(ctx context.Context, h *models.Hike, in HikeInput) error {
	applyHike(h, in)
	if err := s.db.WithContext(ctx).Save(h).Error; err != nil {
		return fmt.Errorf("failed to update hike %d: %w", h.ID, err)
	}
	s.onChange()
	return nil
}

// DestroyHike deletes the hike with its outings and track.
func (s *HikeService) DestroyHike(ctx context.Context, h *models.Hike) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("hike_id = ?", h.ID).Delete(&models.HikeHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("hike_id = ?", h.ID).Delete(&models.HikePath{}).Error; err != nil {
			return err
		}
		return tx.Delete(h).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete hike %d: %w", h.ID, err)
	}
	s.onChange()
	return nil
}

func applyHike(h *models.Hike, in HikeInput) {
	h.Number = in.Number
	h.Day = in.Day
	h.Difficulty = in.Difficulty
	h.TrailName = in.TrailName
	h.StartingPoint = in.StartingPoint
	h.DistanceKm = in.DistanceKm
	h.ElevationGain = in.ElevationGain
	h.ElevationLoss = in.ElevationLoss
	h.AltitudeMin = in.AltitudeMin
	h.AltitudeMax = in.AltitudeMax
	h.CarpoolingCost = in.CarpoolingCost
	h.OpenrunnerRef = in.OpenrunnerRef
}

// ListHistories returns the outings of a hike, most recent first. A zero
// hikeID lists every outing.
func (s *HikeService) ListHistories(ctx context.Context, hikeID uint) ([]models.HikeHistory, error) {
	q := s.db.WithContext(ctx).Order("hiking_date DESC")
	if hikeID != 0 {
		q = q.Where("hike_id = ?", hikeID)
	}
	var out []models.HikeHistory
	err := q.Find(&out).Error
	return out, err
}

func (s *HikeService) FindHistory(ctx context.Context, id uint) (*models.HikeHistory, error) {
	var h models.HikeHistory
	if err := s.db.WithContext(ctx).First(&h, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &h, nil
}

func (s *HikeService) CreateHistory(ctx context.Context, in HikeHistoryInput) (*models.HikeHistory, error) {
	h := &models.HikeHistory{}
	if err := s.applyHistory(ctx, h, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(h).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateHistory
		}
		return nil, fmt.Errorf("failed to create hike history: %w", err)
	}
	s.onChange()
	return h, nil
}

func (s *HikeService) UpdateHistory(ctx context.Context, h *models.HikeHistory, in HikeHistoryInput) error {
	if err := s.applyHistory(ctx, h, in); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(h).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateHistory
		}
		return fmt.Errorf("failed to update hike history %d: %w", h.ID, err)
	}
	s.onChange()
	return nil
}

func (s *HikeService) DestroyHistory(ctx context.Context, h *models.HikeHistory) error {
	if err := s.db.WithContext(ctx).Delete(h).Error; err != nil {
		return fmt.Errorf("failed to delete hike history %d: %w", h.ID, err)
	}
	s.onChange()
	return nil
}

func (s *HikeService) applyHistory(ctx context.Context, h *models.HikeHistory, in HikeHistoryInput) error {
	date, err := time.Parse("2006-01-02", in.HikingDate)
	if err != nil {
		return fmt.Errorf("invalid hiking date %q: %w", in.HikingDate, err)
	}
	if _, err := s.FindHike(ctx, in.HikeID); err != nil {
		return err
	}
	h.HikeID = in.HikeID
	h.UserID = in.UserID
	h.HikingDate = date
	h.DepartureTime = in.DepartureTime
	h.DayType = in.DayType
	h.CarpoolingCost = in.CarpoolingCost
	h.OpenrunnerRef = in.OpenrunnerRef
	return nil
}

func (s *HikeService) ListPaths(ctx context.Context) ([]models.HikePath, error) {
	var out []models.HikePath
	err := s.db.WithContext(ctx).Order("hike_id").Find(&out).Error
	return out, err
}

func (s *HikeService) FindPath(ctx context.Context, id uint) (*models.HikePath, error) {
	var p models.HikePath
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *HikeService) CreatePath(ctx context.Context, in HikePathInput) (*models.HikePath, error) {
	if _, err := s.FindHike(ctx, in.HikeID); err != nil {
		return nil, err
	}
	p := &models.HikePath{HikeID: in.HikeID, Coordinates: in.Coordinates}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("hike %d already has a path", in.HikeID)
		}
		return nil, fmt.Errorf("failed to create hike path: %w", err)
	}
	s.onChange()
	return p, nil
}

func (s *HikeService) UpdatePath(ctx context.Context, p *models.HikePath, coordinates string) error {
	p.Coordinates = coordinates
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("failed to update hike path %d: %w", p.ID, err)
	}
	s.onChange()
	return nil
}

func (s *HikeService) DestroyPath(ctx context.Context, p *models.HikePath) error {
	if err := s.db.WithContext(ctx).Delete(p).Error; err != nil {
		return fmt.Errorf("failed to delete hike path %d: %w", p.ID, err)
	}
	s.onChange()
	return nil
}
