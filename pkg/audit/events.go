package audit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/objperms/objperms/pkg/rowkey"
)

// GrantEvent records permissions being granted to a subject on an object.
type GrantEvent struct {
	Actor        string
	ClientIP     string
	Subject      rowkey.Key
	ObjKind      string
	ObjID        int64
	Perms        []string
	Success      bool
	ErrorMessage string
}

func (e GrantEvent) MessageID() string {
	return "grant"
}

func (e GrantEvent) Message() string {
	perms := strings.Join(e.Perms, ", ")
	if e.Success {
		return fmt.Sprintf("%s granted %s to %s on %s %d", e.Actor, perms, e.Subject, e.ObjKind, e.ObjID)
	}
	msg := fmt.Sprintf("%s failed to grant %s to %s on %s %d", e.Actor, perms, e.Subject, e.ObjKind, e.ObjID)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e GrantEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e GrantEvent) Facility() int {
	return FacilityAuthPriv
}

func (e GrantEvent) StructuredData() map[string]map[string]string {
	return grantSD("grant", e.Actor, e.ClientIP, e.Subject, e.ObjKind, e.ObjID, e.Perms, e.Success)
}

// RevokeEvent records permissions being revoked from a subject on an
// object. All means every permission the subject held was removed.
type RevokeEvent struct {
	Actor        string
	ClientIP     string
	Subject      rowkey.Key
	ObjKind      string
	ObjID        int64
	Perms        []string
	All          bool
	Success      bool
	ErrorMessage string
}

func (e RevokeEvent) MessageID() string {
	return "revoke"
}

func (e RevokeEvent) Message() string {
	what := strings.Join(e.Perms, ", ")
	if e.All {
		what = "all permissions"
	}
	if e.Success {
		return fmt.Sprintf("%s revoked %s from %s on %s %d", e.Actor, what, e.Subject, e.ObjKind, e.ObjID)
	}
	msg := fmt.Sprintf("%s failed to revoke %s from %s on %s %d", e.Actor, what, e.Subject, e.ObjKind, e.ObjID)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e RevokeEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e RevokeEvent) Facility() int {
	return FacilityAuthPriv
}

func (e RevokeEvent) StructuredData() map[string]map[string]string {
	sd := grantSD("revoke", e.Actor, e.ClientIP, e.Subject, e.ObjKind, e.ObjID, e.Perms, e.Success)
	if e.All {
		sd[SDIDAction]["scope"] = "all"
	}
	return sd
}

// RegistrySyncEvent records a definitions file being synced into the
// database.
type RegistrySyncEvent struct {
	Path         string
	Kinds        int
	Permissions  int
	Success      bool
	ErrorMessage string
}

func (e RegistrySyncEvent) MessageID() string {
	return "sync"
}

func (e RegistrySyncEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("synced %d permissions across %d kinds from %s", e.Permissions, e.Kinds, e.Path)
	}
	msg := fmt.Sprintf("failed to sync definitions from %s", e.Path)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e RegistrySyncEvent) Severity() Severity {
	if e.Success {
		return SeverityNotice
	}
	return SeverityError
}

func (e RegistrySyncEvent) Facility() int {
	return FacilityAuth
}

func (e RegistrySyncEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDRegistry: {
			"path":        e.Path,
			"kinds":       strconv.Itoa(e.Kinds),
			"permissions": strconv.Itoa(e.Permissions),
		},
	}
}

func grantSD(operation, actor, clientIP string, subject rowkey.Key, objKind string, objID int64, perms []string, success bool) map[string]map[string]string {
	result := "success"
	if !success {
		result = "failure"
	}
	sd := map[string]map[string]string{
		SDIDSubject: {
			"subject": subject.String(),
		},
		SDIDObject: {
			"kind": objKind,
			"id":   strconv.FormatInt(objID, 10),
		},
		SDIDAction: {
			"operation":   operation,
			"result":      result,
			"permissions": strings.Join(perms, " "),
		},
		SDIDClient: {
			"ip": clientIP,
		},
	}
	if actor != "" {
		sd[SDIDAction]["actor"] = actor
	}
	return sd
}
