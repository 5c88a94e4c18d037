package model

// ObjectPermission represents one permission a subject holds on one
// object. Exactly one of UserID and GroupID is set; the pair of nullable
// columns mirrors the fact that users and groups share a single grants
// table.
type ObjectPermission struct {
	ID         int64  `gorm:"column:id;primaryKey"`
	ObjKind    string `gorm:"column:obj_kind;not null"`
	ObjID      int64  `gorm:"column:obj_id;not null"`
	UserID     *int64 `gorm:"column:user_id"`
	GroupID    *int64 `gorm:"column:group_id"`
	Permission string `gorm:"column:permission;not null"`
}

func (ObjectPermission) TableName() string {
	return "object_permissions"
}
