package endpoints

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/objperms/objperms/pkg/events"
	"github.com/objperms/objperms/pkg/rowkey"
	"github.com/objperms/objperms/pkg/server"
	"github.com/objperms/objperms/pkg/server/store"
)

// postPanel submits fields the way the panel does: multipart/form-data.
func postPanel(t *testing.T, srv *server.Server, url string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			t.Fatalf("writing field %s: %v", name, err)
		}
	}
	if err := form.Close(); err != nil {
		t.Fatalf("closing form: %v", err)
	}

	req := httptest.NewRequest("POST", url, &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, req)
	return w
}

func decodeFieldErrors(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
	fieldErrors := map[string]string{}
	if err := json.NewDecoder(w.Body).Decode(&fieldErrors); err != nil {
		t.Fatalf("decoding field errors: %v", err)
	}
	return fieldErrors
}

func decodeDeletion(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
	var rowID string
	if err := json.NewDecoder(w.Body).Decode(&rowID); err != nil {
		t.Fatalf("decoding deletion signal: %v", err)
	}
	return rowID
}

// drainChanges collects whatever the bus delivered during a request.
func drainChanges(sub *events.Subscription) []events.Change {
	var changes []events.Change
	for {
		select {
		case change := <-sub.C():
			changes = append(changes, change)
		default:
			return changes
		}
	}
}

func TestAddUserReturnsRowFragment(t *testing.T) {
	alice := &store.Subject{Key: rowkey.UserKey(3), Name: "alice"}

	subjects := NewMockSubjectsStore()
	subjects.On("FindUserByUsername", "alice").Return(alice, nil)

	grants := NewMockGrantsStore()
	grants.On("GetPerms", alice.Key, "vm", int64(7)).Return([]string{}, nil).Once()
	grants.On("Grant", alice.Key, "vm", int64(7), "admin").Return(nil)
	grants.On("Grant", alice.Key, "vm", int64(7), "start").Return(nil)
	grants.On("GetPerms", alice.Key, "vm", int64(7)).Return([]string{"admin", "start"}, nil).Once()

	srv := newPanelTestServer(t, subjects, grants)
	sub := srv.Bus.Subscribe()
	defer sub.Close()

	w := postPanel(t, srv, "/panel/vm/7/users", map[string]string{
		"user":  "alice",
		"obj":   "7",
		"admin": "on",
		"start": "on",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected text/html, got %q", ct)
	}

	body := w.Body.String()
	for _, want := range []string{`id="user_3"`, `class="user"`, `>alice<`, `>admin<`, `>start<`} {
		if !strings.Contains(body, want) {
			t.Errorf("fragment missing %s", want)
		}
	}

	changes := drainChanges(sub)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes on the bus, got %d", len(changes))
	}
	for _, change := range changes {
		if change.Op != events.OpGranted || change.Subject != alice.Key || change.ObjID != 7 {
			t.Errorf("unexpected change %+v", change)
		}
	}

	subjects.AssertExpectations(t)
	grants.AssertExpectations(t)
}

func TestAddUserSkipsHeldPerms(t *testing.T) {
	alice := &store.Subject{Key: rowkey.UserKey(3), Name: "alice"}

	subjects := NewMockSubjectsStore()
	subjects.On("FindUserByUsername", "alice").Return(alice, nil)

	grants := NewMockGrantsStore()
	grants.On("GetPerms", alice.Key, "vm", int64(7)).Return([]string{"admin"}, nil)

	srv := newPanelTestServer(t, subjects, grants)

	w := postPanel(t, srv, "/panel/vm/7/users", map[string]string{
		"user":  "alice",
		"obj":   "7",
		"admin": "on",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	// Nothing new was checked, so no Grant calls happen.
	grants.AssertNotCalled(t, "Grant", alice.Key, "vm", int64(7), "admin")
}

func TestAddUserValidation(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		wantField  string
		wantErrMsg string
	}{
		{
			name:       "missing username",
			fields:     map[string]string{"obj": "7", "admin": "on"},
			wantField:  "user",
			wantErrMsg: "This field is required.",
		},
		{
			name:       "unknown user",
			fields:     map[string]string{"user": "nobody", "obj": "7", "admin": "on"},
			wantField:  "user",
			wantErrMsg: "That user does not exist.",
		},
		{
			name:       "unknown permission",
			fields:     map[string]string{"user": "alice", "obj": "7", "fly": "on"},
			wantField:  "fly",
			wantErrMsg: "Unknown permission.",
		},
		{
			name:       "object mismatch",
			fields:     map[string]string{"user": "alice", "obj": "8", "admin": "on"},
			wantField:  "obj",
			wantErrMsg: "Object does not match this panel.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subjects := NewMockSubjectsStore()
			subjects.On("FindUserByUsername", "alice").
				Return(&store.Subject{Key: rowkey.UserKey(3), Name: "alice"}, nil)
			subjects.On("FindUserByUsername", "nobody").Return(nil, store.ErrSubjectNotFound)

			srv := newPanelTestServer(t, subjects, NewMockGrantsStore())
			w := postPanel(t, srv, "/panel/vm/7/users", tt.fields)

			fieldErrors := decodeFieldErrors(t, w)
			if got := fieldErrors[tt.wantField]; got != tt.wantErrMsg {
				t.Errorf("expected %q error %q, got %q", tt.wantField, tt.wantErrMsg, got)
			}
		})
	}
}

func TestDeleteRowSignal(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		key    rowkey.Key
	}{
		{
			name:   "user row",
			fields: map[string]string{"user": "3", "obj": "7"},
			key:    rowkey.UserKey(3),
		},
		{
			name:   "group row",
			fields: map[string]string{"group": "2", "obj": "7"},
			key:    rowkey.GroupKey(2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grants := NewMockGrantsStore()
			grants.On("RevokeAll", tt.key, "vm", int64(7)).Return([]string{"admin", "start"}, nil)

			srv := newPanelTestServer(t, NewMockSubjectsStore(), grants)
			sub := srv.Bus.Subscribe()
			defer sub.Close()

			w := postPanel(t, srv, "/panel/vm/7/users", tt.fields)

			if got := decodeDeletion(t, w); got != tt.key.String() {
				t.Errorf("expected deletion signal %q, got %q", tt.key.String(), got)
			}

			changes := drainChanges(sub)
			if len(changes) != 2 {
				t.Fatalf("expected 2 changes on the bus, got %d", len(changes))
			}
			for _, change := range changes {
				if change.Op != events.OpRevoked || change.Subject != tt.key {
					t.Errorf("unexpected change %+v", change)
				}
			}

			grants.AssertExpectations(t)
		})
	}
}

// A body with a non-numeric user value is an add-user submission, not a
// delete, even when it carries exactly two fields.
func TestDeleteDispatchRequiresNumericID(t *testing.T) {
	alice := &store.Subject{Key: rowkey.UserKey(3), Name: "alice"}

	subjects := NewMockSubjectsStore()
	subjects.On("FindUserByUsername", "alice").Return(alice, nil)

	grants := NewMockGrantsStore()
	grants.On("GetPerms", alice.Key, "vm", int64(7)).Return([]string{}, nil)

	srv := newPanelTestServer(t, subjects, grants)
	w := postPanel(t, srv, "/panel/vm/7/users", map[string]string{
		"user": "alice",
		"obj":  "7",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected a row fragment, got %q", ct)
	}

	grants.AssertNotCalled(t, "RevokeAll", alice.Key, "vm", int64(7))
}

func TestEditReplacesPerms(t *testing.T) {
	key := rowkey.UserKey(3)

	subjects := NewMockSubjectsStore()
	subjects.On("FetchSubject", key).
		Return(&store.Subject{Key: key, Name: "alice"}, nil)

	grants := NewMockGrantsStore()
	grants.On("SetPerms", key, "vm", int64(7), []string{"admin"}).
		Return(nil, []string{"start"}, nil)
	grants.On("GetPerms", key, "vm", int64(7)).Return([]string{"admin"}, nil)

	srv := newPanelTestServer(t, subjects, grants)
	sub := srv.Bus.Subscribe()
	defer sub.Close()

	w := postPanel(t, srv, "/panel/vm/7/users/user_3", map[string]string{
		"obj":   "7",
		"admin": "on",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	body := w.Body.String()
	if !strings.Contains(body, `id="user_3"`) || !strings.Contains(body, `>admin<`) {
		t.Errorf("fragment does not reflect new state: %s", body)
	}
	if strings.Contains(body, `>start<`) {
		t.Error("fragment still shows the revoked permission")
	}

	changes := drainChanges(sub)
	if len(changes) != 1 || changes[0].Op != events.OpRevoked || changes[0].Perm != "start" {
		t.Errorf("expected one revoked change for start, got %+v", changes)
	}

	subjects.AssertExpectations(t)
	grants.AssertExpectations(t)
}

// Unchecking every box is a revoke-all: the server answers with the
// deletion signal so the panel drops the row.
func TestEditEmptySelectionRemovesRow(t *testing.T) {
	key := rowkey.UserKey(3)

	subjects := NewMockSubjectsStore()
	subjects.On("FetchSubject", key).
		Return(&store.Subject{Key: key, Name: "alice"}, nil)

	grants := NewMockGrantsStore()
	grants.On("RevokeAll", key, "vm", int64(7)).Return([]string{"admin"}, nil)

	srv := newPanelTestServer(t, subjects, grants)
	w := postPanel(t, srv, "/panel/vm/7/users/user_3", map[string]string{"obj": "7"})

	if got := decodeDeletion(t, w); got != "user_3" {
		t.Errorf("expected deletion signal user_3, got %q", got)
	}

	grants.AssertExpectations(t)
}

func TestEditValidation(t *testing.T) {
	key := rowkey.UserKey(3)

	subjects := NewMockSubjectsStore()
	subjects.On("FetchSubject", key).
		Return(&store.Subject{Key: key, Name: "alice"}, nil)

	srv := newPanelTestServer(t, subjects, NewMockGrantsStore())
	w := postPanel(t, srv, "/panel/vm/7/users/user_3", map[string]string{
		"obj": "7",
		"fly": "on",
	})

	fieldErrors := decodeFieldErrors(t, w)
	if got := fieldErrors["fly"]; got != "Unknown permission." {
		t.Errorf("expected unknown permission error, got %q", got)
	}
}

func TestEditVanishedSubject(t *testing.T) {
	key := rowkey.GroupKey(2)

	subjects := NewMockSubjectsStore()
	subjects.On("FetchSubject", key).Return(nil, store.ErrSubjectNotFound)

	srv := newPanelTestServer(t, subjects, NewMockGrantsStore())
	w := postPanel(t, srv, "/panel/vm/7/users/group_2", map[string]string{
		"obj":   "7",
		"admin": "on",
	})

	fieldErrors := decodeFieldErrors(t, w)
	if got := fieldErrors["group"]; got != "That group does not exist." {
		t.Errorf("expected group-missing error, got %q", got)
	}
}

func TestEditMalformedRowKey(t *testing.T) {
	srv := newPanelTestServer(t, NewMockSubjectsStore(), NewMockGrantsStore())
	w := postPanel(t, srv, "/panel/vm/7/users/admin_3", map[string]string{"obj": "7"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

// Urlencoded bodies work too; the dispatch and response shapes don't
// depend on the form encoding.
func TestUrlencodedSubmission(t *testing.T) {
	grants := NewMockGrantsStore()
	grants.On("RevokeAll", rowkey.UserKey(3), "vm", int64(7)).Return([]string{"admin"}, nil)

	srv := newPanelTestServer(t, NewMockSubjectsStore(), grants)

	req := httptest.NewRequest("POST", "/panel/vm/7/users", strings.NewReader("user=3&obj=7"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, req)

	if got := decodeDeletion(t, w); got != "user_3" {
		t.Errorf("expected deletion signal user_3, got %q", got)
	}
}

func TestMutationsFullStack(t *testing.T) {
	srv, mdb, err := NewMockTestServer(testDefinitions)
	if err != nil {
		t.Fatalf("creating mock server: %v", err)
	}
	defer mdb.Close()
	RegisterAll(srv)

	t.Run("panel page", func(t *testing.T) {
		mdb.ExpectUsersWithPerms("vm", 7,
			GrantJoinRow{ID: 3, Name: "alice", Permission: "admin"},
			GrantJoinRow{ID: 3, Name: "alice", Permission: "start"},
		)
		mdb.ExpectGroupsWithPerms("vm", 7)

		w := getPanel(srv.Router, "/panel/vm/7")
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `id="user_3"`) {
			t.Error("page missing the user row")
		}
		if err := mdb.VerifyExpectations(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("add user", func(t *testing.T) {
		mdb.ExpectUserByUsername("alice", 3, "")
		mdb.ExpectPermsQuery("vm", 7, 3)
		mdb.ExpectGrantInsert("vm", 7, 3, "admin")
		mdb.ExpectPermsQuery("vm", 7, 3, "admin")

		w := postPanel(t, srv, "/panel/vm/7/users", map[string]string{
			"user":  "alice",
			"obj":   "7",
			"admin": "on",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `id="user_3"`) {
			t.Errorf("expected a row fragment, got %s", w.Body.String())
		}
		if err := mdb.VerifyExpectations(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("add unknown user", func(t *testing.T) {
		mdb.ExpectUserNotFound("nobody")

		w := postPanel(t, srv, "/panel/vm/7/users", map[string]string{
			"user":  "nobody",
			"obj":   "7",
			"admin": "on",
		})
		fieldErrors := decodeFieldErrors(t, w)
		if got := fieldErrors["user"]; got != msgUserNotFound {
			t.Errorf("expected %q, got %q", msgUserNotFound, got)
		}
		if err := mdb.VerifyExpectations(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("edit permissions", func(t *testing.T) {
		mdb.ExpectUserByID(3, "alice", "")
		mdb.ExpectTxCommit(func() {
			mdb.ExpectPermsQuery("vm", 7, 3, "admin")
			mdb.Mock.ExpectExec(`DELETE FROM object_permissions`).
				WithArgs("vm", int64(7), int64(3), "admin").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mdb.ExpectGrantInsert("vm", 7, 3, "start")
		})
		mdb.ExpectPermsQuery("vm", 7, 3, "start")

		w := postPanel(t, srv, "/panel/vm/7/users/user_3", map[string]string{
			"obj":   "7",
			"start": "on",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		body := w.Body.String()
		if !strings.Contains(body, `>start<`) {
			t.Error("fragment missing the granted permission")
		}
		if strings.Contains(body, `>admin<`) {
			t.Error("fragment still shows the revoked permission")
		}
		if err := mdb.VerifyExpectations(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("edit fails closed when the store errors", func(t *testing.T) {
		mdb.ExpectUserByID(3, "alice", "")
		mdb.ExpectTxRollback(func() {
			mdb.Mock.ExpectQuery(`SELECT permission`).
				WithArgs("vm", int64(7), int64(3)).
				WillReturnError(sql.ErrConnDone)
		})

		w := postPanel(t, srv, "/panel/vm/7/users/user_3", map[string]string{
			"obj":   "7",
			"start": "on",
		})
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d: %s", w.Code, w.Body.String())
		}
		if err := mdb.VerifyExpectations(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("delete row", func(t *testing.T) {
		mdb.ExpectRevokeAll("vm", 7, 3, "admin")

		w := postPanel(t, srv, "/panel/vm/7/users", map[string]string{
			"user": "3",
			"obj":  "7",
		})
		if got := decodeDeletion(t, w); got != "user_3" {
			t.Errorf("expected deletion signal user_3, got %q", got)
		}
		if err := mdb.VerifyExpectations(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}
