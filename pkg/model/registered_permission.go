package model

// RegisteredPermission declares a permission name as part of an object
// kind's vocabulary. Grants reference these names; the panel's edit form
// is built from them.
type RegisteredPermission struct {
	ObjKind     string `gorm:"column:obj_kind;primaryKey"`
	Name        string `gorm:"column:name;primaryKey"`
	Label       string `gorm:"column:label"`
	Description string `gorm:"column:description"`
}

func (RegisteredPermission) TableName() string {
	return "registered_permissions"
}
