package store

import (
	"github.com/objperms/objperms/pkg/rowkey"
)

// SubjectPerms is one panel row: a subject and the permissions it
// holds on the object being managed.
type SubjectPerms struct {
	Subject Subject
	Perms   []string
}

// GrantsStore abstracts permission grant storage. Permissions are plain
// names; callers validate them against the registry before writing.
type GrantsStore interface {
	// GetPerms returns the permissions the subject holds on the object,
	// sorted by name. A subject with no grants gets an empty slice.
	GetPerms(subject rowkey.Key, objKind string, objID int64) ([]string, error)

	// Grant adds one permission. Granting a permission the subject
	// already holds is a no-op.
	Grant(subject rowkey.Key, objKind string, objID int64, perm string) error

	// Revoke removes one permission. Revoking a permission the subject
	// doesn't hold is a no-op.
	Revoke(subject rowkey.Key, objKind string, objID int64, perm string) error

	// SetPerms replaces the subject's permissions on the object with
	// exactly perms, returning what was actually added and removed.
	SetPerms(subject rowkey.Key, objKind string, objID int64, perms []string) (granted, revoked []string, err error)

	// RevokeAll removes every permission the subject holds on the
	// object, returning the permissions that were removed.
	RevokeAll(subject rowkey.Key, objKind string, objID int64) ([]string, error)

	// Subjects lists everyone holding at least one permission on the
	// object: users first then groups, each sorted by name. At most
	// limit rows are returned when limit is positive.
	Subjects(objKind string, objID int64, limit int) ([]SubjectPerms, error)

	// HasAnyPermOnKind reports whether the subject holds at least one
	// permission on any object of the kind. For users this includes
	// permissions held through group membership.
	HasAnyPermOnKind(subject rowkey.Key, objKind string) (bool, error)

	// ObjectsWithAnyPerm returns the ids of objects of the kind on
	// which the subject holds at least one permission, sorted. For
	// users this includes permissions held through group membership.
	ObjectsWithAnyPerm(subject rowkey.Key, objKind string) ([]int64, error)
}
