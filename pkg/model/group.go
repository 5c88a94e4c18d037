package model

import "time"

// Group represents a named user group.
type Group struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;not null;unique"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Group) TableName() string {
	return "groups"
}

// GroupMember represents a user's membership in a group.
type GroupMember struct {
	GroupID int64 `gorm:"column:group_id;primaryKey"`
	UserID  int64 `gorm:"column:user_id;primaryKey"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
