package model

import "time"

// User represents an account that can appear in the panel's user list.
type User struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Username  string    `gorm:"column:username;not null;unique"`
	FullName  string    `gorm:"column:full_name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName is the name rendered into a row's .name element and quoted
// in delete confirmations.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
