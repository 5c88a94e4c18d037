package gorm

import (
	"gorm.io/gorm"

	"github.com/objperms/objperms/pkg/rowkey"
	"github.com/objperms/objperms/pkg/server/store"
)

// Ensure SubjectsStore implements store.SubjectsStore
var _ store.SubjectsStore = (*SubjectsStore)(nil)

// SubjectsStore implements store.SubjectsStore using GORM
type SubjectsStore struct {
	db *gorm.DB
}

// NewSubjectsStore creates a new SubjectsStore
func NewSubjectsStore(db *gorm.DB) *SubjectsStore {
	return &SubjectsStore{db: db}
}

type subjectRow struct {
	ID       int64
	Name     string
	FullName string
}

// FindUserByUsername resolves a username to its subject
func (s *SubjectsStore) FindUserByUsername(username string) (*store.Subject, error) {
	var row subjectRow
	result := s.db.Raw(`
		SELECT id, username AS name, full_name
		FROM users
		WHERE username = ?
	`, username).Scan(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, store.ErrSubjectNotFound
	}
	return &store.Subject{Key: rowkey.UserKey(row.ID), Name: row.Name, FullName: row.FullName}, nil
}

// FetchSubject resolves a row key to its subject
func (s *SubjectsStore) FetchSubject(key rowkey.Key) (*store.Subject, error) {
	var row subjectRow
	var result *gorm.DB

	switch key.Kind {
	case rowkey.KindUser:
		result = s.db.Raw(`
			SELECT id, username AS name, full_name
			FROM users
			WHERE id = ?
		`, key.ID).Scan(&row)
	case rowkey.KindGroup:
		result = s.db.Raw(`
			SELECT id, name, '' AS full_name
			FROM groups
			WHERE id = ?
		`, key.ID).Scan(&row)
	}

	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, store.ErrSubjectNotFound
	}
	return &store.Subject{Key: key, Name: row.Name, FullName: row.FullName}, nil
}

// SubjectExists checks if a row key resolves without fetching it
func (s *SubjectsStore) SubjectExists(key rowkey.Key) bool {
	var exists bool
	switch key.Kind {
	case rowkey.KindUser:
		s.db.Raw(`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, key.ID).Scan(&exists)
	case rowkey.KindGroup:
		s.db.Raw(`SELECT EXISTS(SELECT 1 FROM groups WHERE id = ?)`, key.ID).Scan(&exists)
	}
	return exists
}
