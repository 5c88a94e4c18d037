package registry

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/objperms/objperms/pkg/model"
)

// Sync upserts the registry's vocabulary into registered_permissions.
// Rows for permissions no longer in the definitions are left in place so
// that servers still running an older definitions file keep resolving
// their vocabulary.
func (r *Registry) Sync(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, k := range r.Kinds {
			for _, p := range k.Permissions {
				row := model.RegisteredPermission{
					ObjKind:     k.Kind,
					Name:        p.Name,
					Label:       p.DisplayLabel(),
					Description: p.Description,
				}
				err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "obj_kind"}, {Name: "name"}},
					DoUpdates: clause.AssignmentColumns([]string{"label", "description"}),
				}).Create(&row).Error
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}
