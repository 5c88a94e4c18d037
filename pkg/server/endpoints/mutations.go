package endpoints

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/objperms/objperms/pkg/audit"
	"github.com/objperms/objperms/pkg/events"
	"github.com/objperms/objperms/pkg/registry"
	"github.com/objperms/objperms/pkg/rowkey"
	"github.com/objperms/objperms/pkg/server"
	"github.com/objperms/objperms/pkg/server/middleware"
	"github.com/objperms/objperms/pkg/server/store"
)

// Validation messages shown in the panel's error list.
const (
	msgFieldRequired  = "This field is required."
	msgUserNotFound   = "That user does not exist."
	msgGroupNotFound  = "That group does not exist."
	msgUnknownPerm    = "Unknown permission."
	msgObjectMismatch = "Object does not match this panel."
)

const maxFormMemory = 1 << 20

// RegisterMutationEndpoints registers the write side of the panel. Both
// POST routes answer 200 with one of three bodies: an HTML fragment
// holding the row's new state, a JSON object mapping fields to
// validation messages, or a JSON string naming a row to remove.
func RegisterMutationEndpoints(srv *server.Server) {
	router := panelRouter(srv)

	// POST /{kind}/{obj}/users - Add a user, or delete a row
	router.HandleFunc("/{kind}/{obj:[0-9]+}/users", handleUsersPost(srv)).Methods("POST")

	// POST /{kind}/{obj}/users/{row} - Replace one row's permissions
	router.HandleFunc("/{kind}/{obj:[0-9]+}/users/{row}", handleRowPost(srv)).Methods("POST")
}

// parseSubmission reads the posted form. The panel posts
// multipart/form-data; plain urlencoded bodies are accepted too.
func parseSubmission(r *http.Request) (url.Values, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && err != http.ErrNotMultipart {
		return nil, err
	}
	return r.PostForm, nil
}

// deletionRequest recognizes the delete shape: a body holding exactly an
// object id and one numeric subject id keyed "user" or "group". Anything
// else is an add-user submission.
func deletionRequest(form url.Values) (rowkey.Key, bool) {
	if len(form) != 2 || form.Get("obj") == "" {
		return rowkey.Key{}, false
	}
	for _, kind := range []rowkey.Kind{rowkey.KindUser, rowkey.KindGroup} {
		raw := form.Get(kind.Param())
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return rowkey.Key{}, false
		}
		return rowkey.Key{Kind: kind, ID: id}, true
	}
	return rowkey.Key{}, false
}

// checkedPerms splits the form keys into checked permissions and
// field errors for keys that name no known permission. Checkboxes are
// only submitted when ticked, so presence means checked.
func checkedPerms(form url.Values, kind *registry.KindDef) ([]string, map[string]string) {
	fieldErrors := map[string]string{}
	var checked []string
	for name := range form {
		if name == "user" || name == "obj" {
			continue
		}
		if _, ok := kind.Perm(name); !ok {
			fieldErrors[name] = msgUnknownPerm
			continue
		}
		checked = append(checked, name)
	}
	sort.Strings(checked)
	return checked, fieldErrors
}

// objMismatch reports whether the hidden obj field disagrees with the
// object named in the URL.
func objMismatch(form url.Values, objID int64) bool {
	raw := form.Get("obj")
	if raw == "" {
		return false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	return err != nil || id != objID
}

func subjectMissingMsg(kind rowkey.Kind) string {
	if kind == rowkey.KindGroup {
		return msgGroupNotFound
	}
	return msgUserNotFound
}

func handleUsersPost(srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, objID, err := panelVars(srv, r)
		if err != nil {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}

		form, err := parseSubmission(r)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		if key, ok := deletionRequest(form); ok {
			deleteRow(srv, w, r, kind, objID, key)
			return
		}
		addUser(srv, w, r, kind, objID, form)
	}
}

func handleRowPost(srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, objID, err := panelVars(srv, r)
		if err != nil {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}

		key, err := rowkey.Parse(mux.Vars(r)["row"])
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		form, err := parseSubmission(r)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		checked, fieldErrors := checkedPerms(form, kind)

		subject, err := srv.Subjects.FetchSubject(key)
		if err == store.ErrSubjectNotFound {
			fieldErrors[key.Kind.Param()] = subjectMissingMsg(key.Kind)
		} else if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if objMismatch(form, objID) {
			fieldErrors["obj"] = msgObjectMismatch
		}

		if len(fieldErrors) > 0 {
			respondWithFieldErrors(w, fieldErrors)
			return
		}

		// Unchecking every box removes the row.
		if len(checked) == 0 {
			deleteRow(srv, w, r, kind, objID, key)
			return
		}

		granted, revoked, err := srv.Grants.SetPerms(key, kind.Kind, objID, checked)
		if err != nil {
			audit.Log(audit.GrantEvent{
				Actor:        middleware.Actor(r),
				ClientIP:     clientIP(r, srv.Config),
				Subject:      key,
				ObjKind:      kind.Kind,
				ObjID:        objID,
				Perms:        checked,
				ErrorMessage: err.Error(),
			})
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if len(granted) > 0 {
			audit.Log(audit.GrantEvent{
				Actor:    middleware.Actor(r),
				ClientIP: clientIP(r, srv.Config),
				Subject:  key,
				ObjKind:  kind.Kind,
				ObjID:    objID,
				Perms:    granted,
				Success:  true,
			})
			publishChanges(srv, events.OpGranted, key, kind.Kind, objID, granted)
		}
		if len(revoked) > 0 {
			audit.Log(audit.RevokeEvent{
				Actor:    middleware.Actor(r),
				ClientIP: clientIP(r, srv.Config),
				Subject:  key,
				ObjKind:  kind.Kind,
				ObjID:    objID,
				Perms:    revoked,
				Success:  true,
			})
			publishChanges(srv, events.OpRevoked, key, kind.Kind, objID, revoked)
		}

		respondRow(srv, w, kind, objID, *subject)
	}
}

// addUser grants the checked permissions to the named user, leaving any
// permissions they already hold in place, and answers with the row's
// new state.
func addUser(srv *server.Server, w http.ResponseWriter, r *http.Request, kind *registry.KindDef, objID int64, form url.Values) {
	checked, fieldErrors := checkedPerms(form, kind)

	var subject *store.Subject
	username := form.Get("user")
	if username == "" {
		fieldErrors["user"] = msgFieldRequired
	} else {
		var err error
		subject, err = srv.Subjects.FindUserByUsername(username)
		if err == store.ErrSubjectNotFound {
			fieldErrors["user"] = msgUserNotFound
		} else if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	if objMismatch(form, objID) {
		fieldErrors["obj"] = msgObjectMismatch
	}

	if len(fieldErrors) > 0 {
		respondWithFieldErrors(w, fieldErrors)
		return
	}

	key := subject.Key

	current, err := srv.Grants.GetPerms(key, kind.Kind, objID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	held := make(map[string]bool, len(current))
	for _, perm := range current {
		held[perm] = true
	}

	var granted []string
	for _, perm := range checked {
		if held[perm] {
			continue
		}
		if err := srv.Grants.Grant(key, kind.Kind, objID, perm); err != nil {
			audit.Log(audit.GrantEvent{
				Actor:        middleware.Actor(r),
				ClientIP:     clientIP(r, srv.Config),
				Subject:      key,
				ObjKind:      kind.Kind,
				ObjID:        objID,
				Perms:        checked,
				ErrorMessage: err.Error(),
			})
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		granted = append(granted, perm)
	}

	if len(granted) > 0 {
		audit.Log(audit.GrantEvent{
			Actor:    middleware.Actor(r),
			ClientIP: clientIP(r, srv.Config),
			Subject:  key,
			ObjKind:  kind.Kind,
			ObjID:    objID,
			Perms:    granted,
			Success:  true,
		})
		publishChanges(srv, events.OpGranted, key, kind.Kind, objID, granted)
	}

	respondRow(srv, w, kind, objID, *subject)
}

// deleteRow revokes everything the subject holds on the object and
// signals the panel to drop the row. A row that is already gone gets
// the same signal, so replayed deletes converge.
func deleteRow(srv *server.Server, w http.ResponseWriter, r *http.Request, kind *registry.KindDef, objID int64, key rowkey.Key) {
	removed, err := srv.Grants.RevokeAll(key, kind.Kind, objID)
	if err != nil {
		audit.Log(audit.RevokeEvent{
			Actor:        middleware.Actor(r),
			ClientIP:     clientIP(r, srv.Config),
			Subject:      key,
			ObjKind:      kind.Kind,
			ObjID:        objID,
			All:          true,
			ErrorMessage: err.Error(),
		})
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	audit.Log(audit.RevokeEvent{
		Actor:    middleware.Actor(r),
		ClientIP: clientIP(r, srv.Config),
		Subject:  key,
		ObjKind:  kind.Kind,
		ObjID:    objID,
		Perms:    removed,
		All:      true,
		Success:  true,
	})
	publishChanges(srv, events.OpRevoked, key, kind.Kind, objID, removed)

	respondWithDeletion(w, key.String())
}

// respondRow re-reads the subject's permissions and answers with the
// rendered row, so the fragment always reflects stored state.
func respondRow(srv *server.Server, w http.ResponseWriter, kind *registry.KindDef, objID int64, subject store.Subject) {
	perms, err := srv.Grants.GetPerms(subject.Key, kind.Kind, objID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	row, err := renderRow(srv, kind.Kind, objID, store.SubjectPerms{Subject: subject, Perms: perms})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithFragment(w, row)
}

func publishChanges(srv *server.Server, op events.Op, subject rowkey.Key, objKind string, objID int64, perms []string) {
	for _, perm := range perms {
		srv.Bus.Publish(events.Change{
			Op:      op,
			Subject: subject,
			ObjKind: objKind,
			ObjID:   objID,
			Perm:    perm,
		})
	}
}
