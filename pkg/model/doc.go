// Package model defines the database models for objperms.
//
// This package contains GORM models that map to the objperms PostgreSQL
// schema. The schema is the normalized form of the classic per-model
// permission tables: one row per (subject, object, permission) instead of
// a boolean column per permission, so declaring a new permission never
// needs DDL.
//
// # Core Models
//
//   - User: account that can hold permissions directly
//   - Group: named collection of users
//   - GroupMember: group membership edge
//   - ObjectPermission: one permission a user or group holds on one object
//   - RegisteredPermission: vocabulary entry declaring a permission for an object kind
//
// # Database Schema
//
// The database uses PostgreSQL with the following tables:
//
//   - users: panel-visible accounts
//   - groups: user groups
//   - group_members: group membership
//   - object_permissions: granted permissions, unique per subject/object/permission
//   - registered_permissions: declared permission vocabulary per object kind
package model
