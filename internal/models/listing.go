package models

import "time"

// EntityType names the kind of listing mirrored into channels.
type EntityType string

const (
	EntityJob    EntityType = "job"
	EntityResume EntityType = "resume"
)

const StatusActive = "active"

// Job is a vacancy row of the marketplace.
type Job struct {
	ID             int64     `json:"id"`
	EmployerID     int64     `json:"employer_id"`
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	Description    string    `json:"description"`
	CategoryID     int64     `json:"category_id"`
	RegionID       int64     `json:"region_id"`
	DistrictID     int64     `json:"district_id"`
	RegionSlug     string    `json:"region_slug"`
	Address        string    `json:"address"`
	Latitude       float64   `json:"latitude,omitempty"`
	Longitude      float64   `json:"longitude,omitempty"`
	SalaryMin      int64     `json:"salary_min"`
	SalaryMax      int64     `json:"salary_max"`
	ExperienceYrs  int       `json:"experience_years"`
	EmploymentType string    `json:"employment_type"`
	Remote         bool      `json:"remote"`
	Requirements   []string  `json:"requirements"`
	Benefits       []string  `json:"benefits"`
	ContactPhone   string    `json:"contact_phone"`
	ContactName    string    `json:"contact_name"`
	IsActive       bool      `json:"is_active"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Resume is a candidate profile row of the marketplace.
type Resume struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	FullName       string    `json:"full_name"`
	Title          string    `json:"title"`
	About          string    `json:"about"`
	CategoryID     int64     `json:"category_id"`
	RegionID       int64     `json:"region_id"`
	DistrictID     int64     `json:"district_id"`
	RegionSlug     string    `json:"region_slug"`
	SalaryMin      int64     `json:"salary_min"`
	Experience     string    `json:"experience"`
	EmploymentType string    `json:"employment_type"`
	Skills         []string  `json:"skills"`
	Phone          string    `json:"phone"`
	IsPublic       bool      `json:"is_public"`
	Status         string    `json:"status"`
	PostToChannel  *bool     `json:"post_to_channel,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChannelPost remembers the live channel message mirroring a listing.
type ChannelPost struct {
	EntityType  EntityType `json:"entity_type"`
	EntityID    int64      `json:"entity_id"`
	RegionSlug  string     `json:"region_slug"`
	ChannelID   string     `json:"channel_id"`
	ContentHash string     `json:"content_hash"`
	MessageID   int        `json:"message_id"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Application is written when a seeker applies to a vacancy from the bot.
type Application struct {
	UserID    int64     `json:"user_id"`
	JobID     int64     `json:"job_id"`
	ResumeID  int64     `json:"resume_id,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
