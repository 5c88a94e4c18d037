package endpoints

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/objperms/objperms/pkg/registry"
	"github.com/objperms/objperms/pkg/rowkey"
	"github.com/objperms/objperms/pkg/server"
	"github.com/objperms/objperms/pkg/server/store"
)

// RegisterPanelEndpoints registers the read side of the panel: the page
// itself and the popover form bodies it loads.
func RegisterPanelEndpoints(srv *server.Server) {
	router := panelRouter(srv)

	// GET /{kind}/{obj} - Full panel page for one object
	router.HandleFunc("/{kind}/{obj:[0-9]+}", handlePanelPage(srv)).Methods("GET")

	// GET /{kind}/{obj}/users - Add-user form body
	router.HandleFunc("/{kind}/{obj:[0-9]+}/users", handleAddForm(srv)).Methods("GET")

	// GET /{kind}/{obj}/users/{row} - Edit form body for one row
	router.HandleFunc("/{kind}/{obj:[0-9]+}/users/{row}", handleEditForm(srv)).Methods("GET")
}

// panelVars resolves the {kind} and {obj} route variables. Unknown kinds
// are a 404: the panel is only served for registered kinds.
func panelVars(srv *server.Server, r *http.Request) (*registry.KindDef, int64, error) {
	vars := mux.Vars(r)

	kind, ok := srv.Registry.Kind(vars["kind"])
	if !ok {
		return nil, 0, fmt.Errorf("unknown object kind %q", vars["kind"])
	}

	objID, err := strconv.ParseInt(vars["obj"], 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid object id %q", vars["obj"])
	}

	return kind, objID, nil
}

func handlePanelPage(srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, objID, err := panelVars(srv, r)
		if err != nil {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}

		subjects, err := srv.Grants.Subjects(kind.Kind, objID, srv.Config.RowListLimit)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		rows := make([]template.HTML, 0, len(subjects))
		for _, sp := range subjects {
			row, err := renderRow(srv, kind.Kind, objID, sp)
			if err != nil {
				respondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			rows = append(rows, template.HTML(row))
		}

		data := panelData{
			ObjKind:  kind.Kind,
			ObjID:    objID,
			BasePath: srv.Config.BasePath,
			UsersURL: usersURL(srv, kind.Kind, objID),
			Rows:     rows,
		}
		if srv.Config.LiveUpdatesEnabled {
			data.EventsURL = eventsURL(srv, kind.Kind, objID)
		}

		page, err := renderTemplate("panel.html.tmpl", data)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		respondWithFragment(w, page)
	}
}

func handleAddForm(srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, objID, err := panelVars(srv, r)
		if err != nil {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}

		fields, err := permFields(kind, nil)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		form, err := renderTemplate("add_form.html.tmpl", formData{
			PostURL: usersURL(srv, kind.Kind, objID),
			ObjID:   objID,
			Perms:   fields,
		})
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		respondWithFragment(w, form)
	}
}

func handleEditForm(srv *server.Server) http.HandlerFunc {
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

		subject, err := srv.Subjects.FetchSubject(key)
		if err == store.ErrSubjectNotFound {
			respondWithError(w, http.StatusNotFound, "Subject not found")
			return
		}
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		perms, err := srv.Grants.GetPerms(key, kind.Kind, objID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		checked := make(map[string]bool, len(perms))
		for _, perm := range perms {
			checked[perm] = true
		}

		fields, err := permFields(kind, checked)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		form, err := renderTemplate("edit_form.html.tmpl", formData{
			PostURL: rowURL(srv, kind.Kind, objID, key),
			ObjID:   objID,
			Subject: subject.DisplayName(),
			Perms:   fields,
		})
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		respondWithFragment(w, form)
	}
}
