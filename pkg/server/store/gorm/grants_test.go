package gorm

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objperms/objperms/pkg/rowkey"
)

func permissionRows(perms ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"permission"})
	for _, p := range perms {
		rows.AddRow(p)
	}
	return rows
}

func TestGetPerms(t *testing.T) {
	db, mock := newMockDB(t)
	grants := NewGrantsStore(db)

	mock.ExpectQuery(`SELECT permission`).
		WithArgs("vm", int64(7), int64(3)).
		WillReturnRows(permissionRows("admin", "start"))

	perms, err := grants.GetPerms(rowkey.UserKey(3), "vm", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "start"}, perms)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPermsEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	grants := NewGrantsStore(db)

	mock.ExpectQuery(`SELECT permission`).
		WithArgs("vm", int64(7), int64(9)).
		WillReturnRows(permissionRows())

	perms, err := grants.GetPerms(rowkey.GroupKey(9), "vm", 7)
	require.NoError(t, err)
	assert.NotNil(t, perms)
	assert.Empty(t, perms)
}

func TestGrant(t *testing.T) {
	db, mock := newMockDB(t)
	grants := NewGrantsStore(db)

	mock.ExpectExec(`INSERT INTO object_permissions`).
		WithArgs("vm", int64(7), int64(3), "admin").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := grants.Grant(rowkey.UserKey(3), "vm", 7, "admin")
	require.NoError(t, err)
}

func TestGrantAlreadyHeldIsNoOp(t *testing.T) {
	db, mock := newMockDB(t)
	grants := NewGrantsStore(db)

	// ON CONFLICT DO NOTHING reports zero affected rows
	mock.ExpectExec(`INSERT INTO object_permissions`).
		WithArgs("vm", int64(7), int64(3), "admin").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := grants.Grant(rowkey.UserKey(3), "vm", 7, "admin")
	require.NoError(t, err)
}

func TestRevoke(t *testing.T) {
	db, mock := newMockDB(t)
	grants := NewGrantsStore(db)

	mock.ExpectExec(`DELETE FROM object_permissions`).
		WithArgs("vm", int64(7), int64(9), "start").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := grants.Revoke(rowkey.GroupKey(9), "vm", 7, "start")
	require.NoError(t, err)
}

func TestSetPerms(t *testing.T) {
	db, mock := newMockDB(t)
	grants := NewGrantsStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT permission`).
		WithArgs("vm", int64(7), int64(3)).
		WillReturnRows(permissionRows("admin", "start"))
	mock.ExpectExec(`DELETE FROM object_permissions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO object_permissions`).
		WithArgs("vm", int64(7), int64(3), "power_off").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	granted, revoked, err := grants.SetPerms(rowkey.UserKey(3), "vm", 7, []string{"admin", "power_off"})
	require.NoError(t, err)

	assert.Equal(t, []string{"power_off"}, granted)
	assert.Equal(t, []string{"start"}, revoked)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPermsNoChanges(t *testing.T) {
	db, mock := newMockDB(t)
	grants := NewGrantsStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT permission`).
		WithArgs("vm", int64(7), int64(3)).
		WillReturnRows(permissionRows("admin"))
	mock.ExpectCommit()

	granted, revoked, err := grants.SetPerms(rowkey.UserKey(3), "vm", 7, []string{"admin"})
	require.NoError(t, err)

	assert.Empty(t, granted)
	assert.Empty(t, revoked)
}

func TestRevokeAll(t *testing.T) {
	db, mock := newMockDB(t)
	grants := NewGrantsStore(db)

	mock.ExpectQuery(`DELETE FROM object_permissions`).
		WithArgs("vm", int64(7), int64(3)).
		WillReturnRows(permissionRows("admin", "start"))

	revoked, err := grants.RevokeAll(rowkey.UserKey(3), "vm", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "start"}, revoked)
}

func TestSubjects(t *testing.T) {
	db, mock := newMockDB(t)
	grants := NewGrantsStore(db)

	mock.ExpectQuery(`JOIN users u`).
		WithArgs("vm", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "full_name", "permission"}).
			AddRow(3, "alice", "Alice Archer", "admin").
			AddRow(3, "alice", "Alice Archer", "start").
			AddRow(5, "bob", "", "start"))
	mock.ExpectQuery(`JOIN groups g`).
		WithArgs("vm", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "full_name", "permission"}).
			AddRow(2, "ops", "", "admin"))

	rows, err := grants.Subjects("vm", 7, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, rowkey.UserKey(3), rows[0].Subject.Key)
	assert.Equal(t, []string{"admin", "start"}, rows[0].Perms)
	assert.Equal(t, rowkey.UserKey(5), rows[1].Subject.Key)
	assert.Equal(t, rowkey.GroupKey(2), rows[2].Subject.Key)
	assert.Equal(t, "ops", rows[2].Subject.DisplayName())
}

func TestHasAnyPermOnKind(t *testing.T) {
	db, mock := newMockDB(t)
	grants := NewGrantsStore(db)

	// user check includes group-derived grants
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("vm", int64(3), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := grants.HasAnyPermOnKind(rowkey.UserKey(3), "vm")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("vm", int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err = grants.HasAnyPermOnKind(rowkey.GroupKey(9), "vm")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestObjectsWithAnyPerm(t *testing.T) {
	db, mock := newMockDB(t)
	grants := NewGrantsStore(db)

	mock.ExpectQuery(`SELECT DISTINCT obj_id`).
		WithArgs("vm", int64(3), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"obj_id"}).AddRow(4).AddRow(7))

	ids, err := grants.ObjectsWithAnyPerm(rowkey.UserKey(3), "vm")
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 7}, ids)
}

func TestSubjectsLimit(t *testing.T) {
	db, mock := newMockDB(t)
	grants := NewGrantsStore(db)

	mock.ExpectQuery(`JOIN users u`).
		WithArgs("vm", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "full_name", "permission"}).
			AddRow(3, "alice", "", "admin").
			AddRow(5, "bob", "", "admin"))
	mock.ExpectQuery(`JOIN groups g`).
		WithArgs("vm", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "full_name", "permission"}).
			AddRow(2, "ops", "", "admin"))

	rows, err := grants.Subjects("vm", 7, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, rowkey.UserKey(3), rows[0].Subject.Key)
	assert.Equal(t, rowkey.UserKey(5), rows[1].Subject.Key)
}
