// Package registry loads the permission vocabulary: which object kinds
// exist and which permissions can be granted on each. Definitions live
// in a YAML file and are synced into the database, so the panel's edit
// form and the grant endpoints agree on one vocabulary.
package registry
