package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post categories. Confession is special: rows in that category are only
// ever written through the moderation pipeline.
const (
	CategoryGeneral    = "General"
	CategoryHostel     = "Hostel"
	CategoryExams      = "Exams"
	CategoryGossip     = "Gossip"
	CategoryPlacements = "Placements"
	CategoryConfession = "Confession"
)

// MaxTitleLength matches the size constraint on the title column.
const MaxTitleLength = 100

// Status is the persisted visibility state of a post. Rejected confessions
// are never stored, so only approved and pending ever reach the database.
type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
)

// User is an account tied to a college email. The Alias is the only identity
// other users ever see.
type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Alias        string `gorm:"uniqueIndex;not null" json:"alias"`
	IsAdmin      bool   `gorm:"not null;default:false" json:"isAdmin"`
	// Verified flips to true once the signup OTP is confirmed; unverified
	// accounts cannot log in.
	Verified  bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`

	Posts []Post `gorm:"foreignKey:UserID" json:"-"`
}

// Post is a forum post. UserID is kept for ownership checks but never
// serialized; anonymity is the rendered Alias, not a missing link.
type Post struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Title    string `gorm:"not null;size:100" json:"title"`
	Content  string `gorm:"not null" json:"content"`
	Category string `gorm:"not null;default:General;index" json:"category"`
	UserID   string `gorm:"not null;index;size:36" json:"-"`
	Alias    string `gorm:"not null" json:"alias"`

	// Moderation metadata, meaningful for Confession posts. Regular posts
	// are created approved with no reason.
	Status           Status  `gorm:"not null;default:approved;index" json:"status"`
	ModerationReason *string `json:"moderationReason,omitempty"`
	IsEdited         bool    `gorm:"not null;default:false" json:"isEdited"`

	Reactions []Reaction `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Comments  []Comment  `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments"`

	// Counters filled in by queries, not columns.
	Likes    int64 `gorm:"-" json:"likes"`
	Dislikes int64 `gorm:"-" json:"dislikes"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Reaction is a like (+1) or dislike (-1). One row per user per post;
// switching sides overwrites the row.
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    string    `gorm:"not null;size:36;uniqueIndex:idx_reaction_post_user" json:"postId"`
	UserID    string    `gorm:"not null;size:36;uniqueIndex:idx_reaction_post_user" json:"-"`
	Value     int       `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment on a post. Rendered under the commenter's alias.
type Comment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    string    `gorm:"not null;index;size:36" json:"postId"`
	UserID    string    `gorm:"not null;size:36" json:"-"`
	Alias     string    `gorm:"not null" json:"alias"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OTP purposes.
const (
	OTPPurposeSignup = "signup"
	OTPPurposeReset  = "reset"
)

// EmailOTP is a pending one-time code. Codes expire after ten minutes and
// are deleted on use.
type EmailOTP struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Email     string    `gorm:"not null;index" json:"-"`
	Code      string    `gorm:"not null" json:"-"`
	Purpose   string    `gorm:"not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"-"`
}

// LeaderboardEntry is one row of the top-contributors aggregation.
type LeaderboardEntry struct {
	Alias      string `json:"alias"`
	TotalPosts int64  `json:"totalPosts"`
	TotalLikes int64  `json:"totalLikes"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
