// Package gorm provides GORM-based implementations of the store
// interfaces defined in the parent store package.
//
// Queries are raw SQL against the users, groups and object_permissions
// tables. The interfaces they implement are defined in pkg/server/store.
package gorm
