package store

import (
	"errors"

	"github.com/objperms/objperms/pkg/rowkey"
)

// ErrSubjectNotFound is returned when a user or group doesn't exist
var ErrSubjectNotFound = errors.New("subject not found")

// Subject is a user or group that can hold permissions on objects.
type Subject struct {
	Key      rowkey.Key
	Name     string
	FullName string
}

// DisplayName returns the name the panel shows for this subject.
func (s Subject) DisplayName() string {
	if s.FullName != "" {
		return s.FullName
	}
	return s.Name
}

// SubjectsStore abstracts user and group lookups
type SubjectsStore interface {
	// FindUserByUsername resolves a username to its subject.
	// Returns ErrSubjectNotFound if no such user exists.
	FindUserByUsername(username string) (*Subject, error)

	// FetchSubject resolves a row key to its subject.
	// Returns ErrSubjectNotFound if the key matches nothing.
	FetchSubject(key rowkey.Key) (*Subject, error)

	// SubjectExists checks if a row key resolves without fetching it
	SubjectExists(key rowkey.Key) bool
}
