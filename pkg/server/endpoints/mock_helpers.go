package endpoints

import (
	"database/sql"
	"strings"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/objperms/objperms/pkg/config"
	"github.com/objperms/objperms/pkg/registry"
	"github.com/objperms/objperms/pkg/server"
)

// NewMockTestServer creates a server instance with a mocked database for
// unit testing. Returns the server, the mock wrapper, and any error.
func NewMockTestServer(definitions string) (*server.Server, *MockDB, error) {
	reg, err := registry.Load(strings.NewReader(definitions))
	if err != nil {
		return nil, nil, err
	}

	mdb, err := NewMockDB()
	if err != nil {
		return nil, nil, err
	}

	cfg := &config.PanelConfig{
		ListenAddr:         "127.0.0.1:0",
		BasePath:           "/panel",
		SessionTTL:         3600,
		RowListLimit:       1000,
		LiveUpdatesEnabled: true,
	}

	s := server.NewServer(cfg, reg, mdb.GormDB)

	return s, mdb, nil
}

// MockDB wraps sqlmock for easier test setup
type MockDB struct {
	DB     *sql.DB
	Mock   sqlmock.Sqlmock
	GormDB *gorm.DB
}

// NewMockDB creates a new mock database connection
func NewMockDB() (*MockDB, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, err
	}

	gormDB, err := gorm.Open(
		postgres.New(postgres.Config{
			Conn:                 db,
			PreferSimpleProtocol: true,
		}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		},
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &MockDB{
		DB:     db,
		Mock:   mock,
		GormDB: gormDB,
	}, nil
}

// Close closes the mock database
func (m *MockDB) Close() error {
	return m.DB.Close()
}

// grantJoinColumns are the columns the row-listing queries produce.
var grantJoinColumns = []string{"id", "name", "full_name", "permission"}

// GrantJoinRow is one row of a row-listing query: a subject joined to
// one permission it holds.
type GrantJoinRow struct {
	ID         int64
	Name       string
	FullName   string
	Permission string
}

// ExpectUsersWithPerms sets up the user half of a row listing, one row
// per held permission.
func (m *MockDB) ExpectUsersWithPerms(objKind string, objID int64, rows ...GrantJoinRow) {
	result := sqlmock.NewRows(grantJoinColumns)
	for _, row := range rows {
		result.AddRow(row.ID, row.Name, row.FullName, row.Permission)
	}
	m.Mock.ExpectQuery(`SELECT u\.id, u\.username AS name`).
		WithArgs(objKind, objID).
		WillReturnRows(result)
}

// ExpectGroupsWithPerms sets up the group half of a row listing.
func (m *MockDB) ExpectGroupsWithPerms(objKind string, objID int64, rows ...GrantJoinRow) {
	result := sqlmock.NewRows(grantJoinColumns)
	for _, row := range rows {
		result.AddRow(row.ID, row.Name, row.FullName, row.Permission)
	}
	m.Mock.ExpectQuery(`SELECT g\.id, g\.name`).
		WithArgs(objKind, objID).
		WillReturnRows(result)
}

// ExpectUserByUsername sets up expectation for a username lookup
func (m *MockDB) ExpectUserByUsername(username string, id int64, fullName string) {
	rows := sqlmock.NewRows([]string{"id", "name", "full_name"}).AddRow(id, username, fullName)
	m.Mock.ExpectQuery(`SELECT id, username AS name`).
		WithArgs(username).
		WillReturnRows(rows)
}

// ExpectUserNotFound sets up expectation for a username lookup that
// matches nothing. Lookups scan rows, so missing means zero rows rather
// than an error.
func (m *MockDB) ExpectUserNotFound(username string) {
	m.Mock.ExpectQuery(`SELECT id, username AS name`).
		WithArgs(username).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "full_name"}))
}

// ExpectUserByID sets up expectation for a user fetch by row id
func (m *MockDB) ExpectUserByID(id int64, username, fullName string) {
	rows := sqlmock.NewRows([]string{"id", "name", "full_name"}).AddRow(id, username, fullName)
	m.Mock.ExpectQuery(`SELECT id, username AS name`).
		WithArgs(id).
		WillReturnRows(rows)
}

// ExpectPermsQuery sets up expectation for a subject's permission list
func (m *MockDB) ExpectPermsQuery(objKind string, objID, subjectID int64, perms ...string) {
	rows := sqlmock.NewRows([]string{"permission"})
	for _, perm := range perms {
		rows.AddRow(perm)
	}
	m.Mock.ExpectQuery(`SELECT permission`).
		WithArgs(objKind, objID, subjectID).
		WillReturnRows(rows)
}

// ExpectGrantInsert sets up expectation for one permission grant
func (m *MockDB) ExpectGrantInsert(objKind string, objID, subjectID int64, perm string) {
	m.Mock.ExpectExec(`INSERT INTO object_permissions`).
		WithArgs(objKind, objID, subjectID, perm).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

// ExpectRevokeAll sets up expectation for a revoke-all, returning the
// permissions that were removed
func (m *MockDB) ExpectRevokeAll(objKind string, objID, subjectID int64, removed ...string) {
	rows := sqlmock.NewRows([]string{"permission"})
	for _, perm := range removed {
		rows.AddRow(perm)
	}
	m.Mock.ExpectQuery(`DELETE FROM object_permissions`).
		WithArgs(objKind, objID, subjectID).
		WillReturnRows(rows)
}

// ExpectTxCommit brackets the expectations body declares in a
// transaction that commits. Expectations are matched in order, so the
// statements inside the transaction must be declared inside body.
func (m *MockDB) ExpectTxCommit(body func()) {
	m.Mock.ExpectBegin()
	if body != nil {
		body()
	}
	m.Mock.ExpectCommit()
}

// ExpectTxRollback brackets the expectations body declares in a
// transaction that rolls back.
func (m *MockDB) ExpectTxRollback(body func()) {
	m.Mock.ExpectBegin()
	if body != nil {
		body()
	}
	m.Mock.ExpectRollback()
}

// VerifyExpectations checks that all expectations were met
func (m *MockDB) VerifyExpectations() error {
	return m.Mock.ExpectationsWereMet()
}
