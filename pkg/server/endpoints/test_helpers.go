package endpoints

import (
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/objperms/objperms/pkg/config"
	"github.com/objperms/objperms/pkg/registry"
	"github.com/objperms/objperms/pkg/server"
)

// NewTestServer creates a server instance for testing.
// It requires a running PostgreSQL database.
func NewTestServer(dbURL string, definitions string) (*server.Server, error) {
	reg, err := registry.Load(strings.NewReader(definitions))
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(
		postgres.New(postgres.Config{
			DSN:                  dbURL,
			PreferSimpleProtocol: true,
		}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		},
	)
	if err != nil {
		return nil, err
	}

	cfg := &config.PanelConfig{
		ListenAddr:         "127.0.0.1:0",
		BasePath:           "/panel",
		SessionTTL:         3600,
		RowListLimit:       1000,
		LiveUpdatesEnabled: true,
	}

	s := server.NewServer(cfg, reg, db)

	return s, nil
}

// CreateTestUser inserts a user, updating the name fields if the id is
// already taken from an earlier run.
func CreateTestUser(db *gorm.DB, id int64, username, fullName string) error {
	return db.Exec(`
		INSERT INTO users (id, username, full_name) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, full_name = EXCLUDED.full_name
	`, id, username, fullName).Error
}

// CreateTestGroup inserts a group
func CreateTestGroup(db *gorm.DB, id int64, name string) error {
	return db.Exec(`
		INSERT INTO groups (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, id, name).Error
}

// AddTestGroupMember puts a user in a group
func AddTestGroupMember(db *gorm.DB, groupID, userID int64) error {
	return db.Exec(`
		INSERT INTO group_members (group_id, user_id) VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, groupID, userID).Error
}

// GrantTestPermission grants one permission to a user on an object
func GrantTestPermission(db *gorm.DB, userID int64, objKind string, objID int64, perm string) error {
	return db.Exec(`
		INSERT INTO object_permissions (obj_kind, obj_id, user_id, permission) VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, objKind, objID, userID, perm).Error
}

// GrantTestGroupPermission grants one permission to a group on an object
func GrantTestGroupPermission(db *gorm.DB, groupID int64, objKind string, objID int64, perm string) error {
	return db.Exec(`
		INSERT INTO object_permissions (obj_kind, obj_id, group_id, permission) VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, objKind, objID, groupID, perm).Error
}

// CleanupTestData removes test data from the database
func CleanupTestData(db *gorm.DB) error {
	// Delete in reverse order of foreign key dependencies
	db.Exec(`DELETE FROM object_permissions`)
	db.Exec(`DELETE FROM group_members`)
	db.Exec(`DELETE FROM registered_permissions`)
	db.Exec(`DELETE FROM groups`)
	db.Exec(`DELETE FROM users`)
	return nil
}
