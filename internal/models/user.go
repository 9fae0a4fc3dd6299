// Package models contains data structures for the application's domain models.
package models

import "time"

// User is a directory entry that can send and receive friend requests.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"unique;not null;size:64" json:"username"`
	DeviceToken *string   `gorm:"column:fcm_token;size:512" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// HasDeviceToken reports whether a push target is registered for the user.
func (u *User) HasDeviceToken() bool {
	return u != nil && u.DeviceToken != nil && *u.DeviceToken != ""
}
