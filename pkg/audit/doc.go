// Package audit provides audit logging for permission changes.
//
// Grant and revoke operations are security-relevant: they decide who can
// touch which objects. Every mutation that goes through the panel or the
// CLI emits an event here, regardless of whether it succeeded.
//
// # Event Types
//
//   - Grant events (permissions added to a user or group)
//   - Revoke events (permissions removed, including revoke-all)
//   - Registry sync events (vocabulary definitions loaded)
//
// # Usage
//
//	audit.Log(audit.GrantEvent{
//		Actor:   actor,
//		Subject: key,
//		ObjKind: "vm",
//		ObjID:   7,
//		Perms:   []string{"admin"},
//		Success: true,
//	})
//
// Events are written to stdout in RFC5424 syslog format and, when
// OBJPERMS_AUDIT_DATABASE_URL is set, persisted to the audit_messages
// table.
package audit
