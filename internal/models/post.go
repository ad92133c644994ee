package models

import (
	"strconv"
	"strings"
	"time"
)

// BlogPost is a post written by a single author.
//
// VisibleTo is free-form text holding comma-joined user ids. Membership is
// tested by substring, so id 1 also matches a list containing 12.
type BlogPost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE" json:"-"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	VisibleTo string    `gorm:"not null;default:''" json:"visible_to"`
}

// VisibleToContains applies the same substring test the store uses for listing.
func (p *BlogPost) VisibleToContains(userID uint) bool {
	return strings.Contains(p.VisibleTo, strconv.FormatUint(uint64(userID), 10))
}
