package gorm

import (
	"gorm.io/gorm"

	"github.com/objperms/objperms/pkg/rowkey"
	"github.com/objperms/objperms/pkg/server/store"
)

// Ensure GrantsStore implements store.GrantsStore
var _ store.GrantsStore = (*GrantsStore)(nil)

// GrantsStore implements store.GrantsStore using GORM
type GrantsStore struct {
	db *gorm.DB
}

// NewGrantsStore creates a new GrantsStore
func NewGrantsStore(db *gorm.DB) *GrantsStore {
	return &GrantsStore{db: db}
}

// subjectColumn names the grants column holding this kind of subject.
// Keys come from rowkey.Parse, never from raw request input.
func subjectColumn(kind rowkey.Kind) string {
	if kind == rowkey.KindGroup {
		return "group_id"
	}
	return "user_id"
}

// GetPerms returns the permissions the subject holds on the object
func (s *GrantsStore) GetPerms(subject rowkey.Key, objKind string, objID int64) ([]string, error) {
	perms := []string{}
	result := s.db.Raw(`
		SELECT permission
		FROM object_permissions
		WHERE obj_kind = ? AND obj_id = ? AND `+subjectColumn(subject.Kind)+` = ?
		ORDER BY permission
	`, objKind, objID, subject.ID).Scan(&perms)
	return perms, result.Error
}

// Grant adds one permission
func (s *GrantsStore) Grant(subject rowkey.Key, objKind string, objID int64, perm string) error {
	return s.db.Exec(`
		INSERT INTO object_permissions (obj_kind, obj_id, `+subjectColumn(subject.Kind)+`, permission)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, objKind, objID, subject.ID, perm).Error
}

// Revoke removes one permission
func (s *GrantsStore) Revoke(subject rowkey.Key, objKind string, objID int64, perm string) error {
	return s.db.Exec(`
		DELETE FROM object_permissions
		WHERE obj_kind = ? AND obj_id = ? AND `+subjectColumn(subject.Kind)+` = ? AND permission = ?
	`, objKind, objID, subject.ID, perm).Error
}

// SetPerms replaces the subject's permissions on the object
func (s *GrantsStore) SetPerms(subject rowkey.Key, objKind string, objID int64, perms []string) (granted, revoked []string, err error) {
	desired := make(map[string]bool, len(perms))
	for _, p := range perms {
		desired[p] = true
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		current := []string{}
		result := tx.Raw(`
			SELECT permission
			FROM object_permissions
			WHERE obj_kind = ? AND obj_id = ? AND `+subjectColumn(subject.Kind)+` = ?
			ORDER BY permission
		`, objKind, objID, subject.ID).Scan(&current)
		if result.Error != nil {
			return result.Error
		}

		held := make(map[string]bool, len(current))
		for _, p := range current {
			held[p] = true
			if !desired[p] {
				revoked = append(revoked, p)
			}
		}
		for _, p := range perms {
			if !held[p] {
				granted = append(granted, p)
			}
		}

		if len(revoked) > 0 {
			err := tx.Exec(`
				DELETE FROM object_permissions
				WHERE obj_kind = ? AND obj_id = ? AND `+subjectColumn(subject.Kind)+` = ? AND permission IN ?
			`, objKind, objID, subject.ID, revoked).Error
			if err != nil {
				return err
			}
		}
		for _, p := range granted {
			err := tx.Exec(`
				INSERT INTO object_permissions (obj_kind, obj_id, `+subjectColumn(subject.Kind)+`, permission)
				VALUES (?, ?, ?, ?)
				ON CONFLICT DO NOTHING
			`, objKind, objID, subject.ID, p).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return granted, revoked, nil
}

// RevokeAll removes every permission the subject holds on the object
func (s *GrantsStore) RevokeAll(subject rowkey.Key, objKind string, objID int64) ([]string, error) {
	revoked := []string{}
	result := s.db.Raw(`
		DELETE FROM object_permissions
		WHERE obj_kind = ? AND obj_id = ? AND `+subjectColumn(subject.Kind)+` = ?
		RETURNING permission
	`, objKind, objID, subject.ID).Scan(&revoked)
	return revoked, result.Error
}

// HasAnyPermOnKind reports whether the subject holds at least one
// permission on any object of the kind
func (s *GrantsStore) HasAnyPermOnKind(subject rowkey.Key, objKind string) (bool, error) {
	var exists bool
	var result *gorm.DB
	if subject.Kind == rowkey.KindUser {
		result = s.db.Raw(`
			SELECT EXISTS(
				SELECT 1 FROM object_permissions
				WHERE obj_kind = ?
				  AND (user_id = ? OR group_id IN (
					SELECT group_id FROM group_members WHERE user_id = ?))
			)
		`, objKind, subject.ID, subject.ID).Scan(&exists)
	} else {
		result = s.db.Raw(`
			SELECT EXISTS(
				SELECT 1 FROM object_permissions
				WHERE obj_kind = ? AND group_id = ?
			)
		`, objKind, subject.ID).Scan(&exists)
	}
	return exists, result.Error
}

// ObjectsWithAnyPerm returns the ids of objects of the kind on which
// the subject holds at least one permission
func (s *GrantsStore) ObjectsWithAnyPerm(subject rowkey.Key, objKind string) ([]int64, error) {
	ids := []int64{}
	var result *gorm.DB
	if subject.Kind == rowkey.KindUser {
		result = s.db.Raw(`
			SELECT DISTINCT obj_id FROM object_permissions
			WHERE obj_kind = ?
			  AND (user_id = ? OR group_id IN (
				SELECT group_id FROM group_members WHERE user_id = ?))
			ORDER BY obj_id
		`, objKind, subject.ID, subject.ID).Scan(&ids)
	} else {
		result = s.db.Raw(`
			SELECT DISTINCT obj_id FROM object_permissions
			WHERE obj_kind = ? AND group_id = ?
			ORDER BY obj_id
		`, objKind, subject.ID).Scan(&ids)
	}
	return ids, result.Error
}

type grantRow struct {
	ID         int64
	Name       string
	FullName   string
	Permission string
}

// Subjects lists everyone holding at least one permission on the object
func (s *GrantsStore) Subjects(objKind string, objID int64, limit int) ([]store.SubjectPerms, error) {
	var userRows []grantRow
	result := s.db.Raw(`
		SELECT u.id, u.username AS name, u.full_name, op.permission
		FROM object_permissions op
		JOIN users u ON u.id = op.user_id
		WHERE op.obj_kind = ? AND op.obj_id = ?
		ORDER BY u.username, op.permission
	`, objKind, objID).Scan(&userRows)
	if result.Error != nil {
		return nil, result.Error
	}

	var groupRows []grantRow
	result = s.db.Raw(`
		SELECT g.id, g.name, '' AS full_name, op.permission
		FROM object_permissions op
		JOIN groups g ON g.id = op.group_id
		WHERE op.obj_kind = ? AND op.obj_id = ?
		ORDER BY g.name, op.permission
	`, objKind, objID).Scan(&groupRows)
	if result.Error != nil {
		return nil, result.Error
	}

	rows := foldGrantRows(userRows, rowkey.KindUser)
	rows = append(rows, foldGrantRows(groupRows, rowkey.KindGroup)...)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// foldGrantRows collapses the per-permission join rows into one entry
// per subject, relying on the query's subject-major ordering.
func foldGrantRows(rows []grantRow, kind rowkey.Kind) []store.SubjectPerms {
	folded := []store.SubjectPerms{}
	for _, row := range rows {
		key := rowkey.Key{Kind: kind, ID: row.ID}
		if n := len(folded); n > 0 && folded[n-1].Subject.Key == key {
			folded[n-1].Perms = append(folded[n-1].Perms, row.Permission)
			continue
		}
		folded = append(folded, store.SubjectPerms{
			Subject: store.Subject{Key: key, Name: row.Name, FullName: row.FullName},
			Perms:   []string{row.Permission},
		})
	}
	return folded
}
