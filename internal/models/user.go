// Package models contains data structures for the application's domain models.
package models

// User represents a registered account.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Password string `gorm:"size:150;not null" json:"-"`
	IsAdmin  bool   `gorm:"not null;default:false" json:"is_admin"`
}

// CanModify reports whether u may update or delete a post written by authorID.
func (u *User) CanModify(authorID uint) bool {
	if u == nil {
		return false
	}
	return u.ID == authorID || u.IsAdmin
}
