// Package store provides storage abstractions for the panel server.
//
// This package defines interfaces for database operations, allowing the
// server endpoints to be decoupled from the specific database implementation.
// This enables easier testing with mocks and potential support for different
// storage backends.
//
// # Available Stores
//
//   - SubjectsStore: user and group lookups
//   - GrantsStore: per-object permission grants
//
// # Usage
//
//	subjects := gorm.NewSubjectsStore(db)
//	subject, err := subjects.FindUserByUsername("alice")
//	if err != nil {
//	    if errors.Is(err, store.ErrSubjectNotFound) {
//	        // Handle not found
//	    }
//	}
package store
