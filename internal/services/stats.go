package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hikeclub/internal/models"
	"hikeclub/internal/utils"
)

const dashboardCacheKey = "stats:dashboard"

// MonthCount is one bar of the monthly histogram.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type GuideCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type RecentHike struct {
	HikeID     uint      `json:"hike_id"`
	TrailName  string    `json:"trail_name"`
	DistanceKm float64   `json:"distance_km"`
	HikingDate time.Time `json:"hiking_date"`
}

// Dashboard aggregates the public statistics page.
type Dashboard struct {
	TotalHikes     int64        `json:"total_hikes"`
	TotalDistance  float64      `json:"total_distance"`
	TotalElevation float64      `json:"total_elevation"`
	ActiveGuides   int64        `json:"active_guides"`
	Monthly        []MonthCount `json:"monthly_stats"`
	Guides         []GuideCount `json:"guide_stats"`
	LastHikes      []RecentHike `json:"last_hikes"`
}

type StatsService struct {
	db     *gorm.DB
	cache  *utils.TTLCache
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewStatsService(db *gorm.DB, cache *utils.TTLCache, ttl time.Duration, logger *zap.Logger) *StatsService {
	return &StatsService{db: db, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// Dashboard returns the cached dashboard, computing it when stale.
func (s *StatsService) Dashboard(ctx context.Context) (*Dashboard, error) {
	if cached, ok := s.cache.Get(dashboardCacheKey).(*Dashboard); ok {
		return cached, nil
	}
	d, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(dashboardCacheKey, d, s.ttl)
	return d, nil
}

// Invalidate drops the cached dashboard after hike data changed.
func (s *StatsService) Invalidate() {
	s.cache.Delete(dashboardCacheKey)
}

func (s *StatsService) compute(ctx context.Context) (*Dashboard, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	yearAgo := monthStart.AddDate(0, -11, 0)

	tx := s.db.WithContext(ctx)
	d := &Dashboard{}

	err := tx.Model(&models.HikeHistory{}).
		Where("hiking_date >= ? AND hiking_date < ?", yearStart, today.AddDate(0, 0, 1)).
		Distinct("hike_id").Count(&d.TotalHikes).Error
	if err != nil {
		return nil, fmt.Errorf("total hikes: %w", err)
	}

	var totals struct {
		Distance  float64
		Elevation float64
	}
	err = tx.Table("hike_histories").
		Select("COALESCE(SUM(hikes.distance_km), 0) AS distance, COALESCE(SUM(hikes.elevation_gain), 0) AS elevation").
		Joins("JOIN hikes ON hikes.id = hike_histories.hike_id").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}
	d.TotalDistance, d.TotalElevation = totals.Distance, totals.Elevation

	err = tx.Model(&models.HikeHistory{}).
		Where("hiking_date >= ? AND user_id IS NOT NULL", monthStart).
		Distinct("user_id").Count(&d.ActiveGuides).Error
	if err != nil {
		return nil, fmt.Errorf("active guides: %w", err)
	}

	var dates []time.Time
	err = tx.Model(&models.HikeHistory{}).
		Where("hiking_date >= ?", yearAgo).
		Pluck("hiking_date", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("monthly stats: %w", err)
	}
	d.Monthly = monthlyBuckets(dates, monthStart)

	err = tx.Table("hike_histories").
		Select("users.name AS name, COUNT(*) AS count").
		Joins("JOIN users ON users.id = hike_histories.user_id").
		Where("hike_histories.hiking_date >= ?", now.AddDate(-1, 0, 0)).
		Group("users.name").
		Order("count DESC").
		Limit(10).
		Scan(&d.Guides).Error
	if err != nil {
		return nil, fmt.Errorf("guide stats: %w", err)
	}

	err = tx.Table("hike_histories").
		Select("hikes.id AS hike_id, hikes.trail_name, hikes.distance_km, hike_histories.hiking_date").
		Joins("JOIN hikes ON hikes.id = hike_histories.hike_id").
		Where("hike_histories.hiking_date < ?", today).
		Order("hike_histories.hiking_date DESC").
		Limit(10).
		Scan(&d.LastHikes).Error
	if err != nil {
		return nil, fmt.Errorf("last hikes: %w", err)
	}

	s.logger.Debug("stats dashboard computed", zap.Int64("total_hikes", d.TotalHikes))
	return d, nil
}

// monthlyBuckets counts dates into the twelve months ending with current.
func monthlyBuckets(dates []time.Time, current time.Time) []MonthCount {
	out := make([]MonthCount, 12)
	index := make(map[string]int, 12)
	for i := 0; i < 12; i++ {
		m := current.AddDate(0, i-11, 0)
		key := m.Format("2006-01")
		index[key] = i
		out[i] = MonthCount{Month: m.Format("Jan")}
	}
	for _, d := range dates {
		if i, ok := index[d.UTC().Format("2006-01")]; ok {
			out[i].Count++
		}
	}
	return out
}
