// Package rowkey models the structured identifiers panel rows carry.
//
// Every row in the permissions panel encodes its subject in its element
// identifier: "user_<id>" for users, "group_<id>" for groups. The server
// renders these identifiers, the client parses them back, and deletion
// signals quote them on the wire. Keeping both sides on one strict format
// is what this package is for: Parse accepts exactly ^(user|group)_[0-9]+$
// and fails loudly on anything else instead of guessing with substring
// arithmetic.
package rowkey
