package models

import "time"

const (
	PostDraft     = "draft"
	PostPublished = "published"
	PostScheduled = "scheduled"
)

type BlogPost struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	Title    string `gorm:"size:255;not null" json:"title"`
	Slug     string `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Content  string `gorm:"type:longtext" json:"content"`
	Excerpt  string `gorm:"type:text" json:"excerpt"`
	Category string `gorm:"size:100" json:"category"`
	// Tags is a JSON-encoded string list.
	Tags            string     `gorm:"type:text" json:"tags"`
	Status          string     `gorm:"type:varchar(20);not null;default:'draft'" json:"status"`
	FeaturedImage   string     `gorm:"type:varchar(512)" json:"featured_image"`
	PublishDate     *time.Time `json:"publish_date,omitempty"`
	MetaTitle       string     `gorm:"size:60" json:"meta_title"`
	MetaDescription string     `gorm:"size:160" json:"meta_description"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"-"`

	Author *User `gorm:"foreignKey:AuthorID" json:"-"`
}

func (BlogPost) TableName() string {
	return "blog_posts"
}
