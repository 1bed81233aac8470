package models

import (
	"time"
)

// Authorization kinds of the hike domain.
const (
	ResourceHike        = "hike"
	ResourceHikeHistory = "hike_history"
	ResourceHikePath    = "hike_path"
)

type Hike struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	Number            int           `json:"number"`
	Day               int           `json:"day"`
	Difficulty        int           `json:"difficulty"`
	TrailName         string        `gorm:"not null" json:"trail_name"`
	StartingPoint     string        `json:"starting_point"`
	DistanceKm        float64       `json:"distance_km"`
	ElevationGain     float64       `json:"elevation_gain"`
	ElevationLoss     int           `json:"elevation_loss"`
	AltitudeMin       int           `json:"altitude_min"`
	AltitudeMax       int           `json:"altitude_max"`
	CarpoolingCost    float64       `json:"carpooling_cost"`
	OpenrunnerRef     string        `json:"openrunner_ref"`
	Updating          bool          `gorm:"default:false" json:"updating"`
	LastUpdateAttempt *time.Time    `json:"last_update_attempt"`
	Histories         []HikeHistory `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Path              *HikePath     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func (h *Hike) ResourceKind() string { return ResourceHike }

// HikeHistory records one outing of a hike, led by a guide.
type HikeHistory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	HikeID         uint      `gorm:"not null;index;uniqueIndex:idx_hike_histories_date_hike" json:"hike_id"`
	UserID         *uint     `gorm:"index" json:"user_id"` // guide
	User           *User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	HikingDate     time.Time `gorm:"type:date;not null;uniqueIndex:idx_hike_histories_date_hike" json:"hiking_date"`
	DepartureTime  string    `gorm:"size:8" json:"departure_time"`
	DayType        string    `gorm:"size:32" json:"day_type"`
	CarpoolingCost float64   `json:"carpooling_cost"`
	OpenrunnerRef  string    `json:"openrunner_ref"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (h *HikeHistory) ResourceKind() string { return ResourceHikeHistory }

// HikePath stores the encoded track of a hike.
type HikePath struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	HikeID      uint      `gorm:"not null;uniqueIndex" json:"hike_id"`
	Coordinates string    `gorm:"type:text" json:"coordinates"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *HikePath) ResourceKind() string { return ResourceHikePath }
