package endpoints

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/objperms/objperms/pkg/registry"
	"github.com/objperms/objperms/pkg/rowkey"
	"github.com/objperms/objperms/pkg/server"
	"github.com/objperms/objperms/pkg/server/store"
)

//go:embed templates
var templateFiles embed.FS

var templates = template.Must(template.ParseFS(templateFiles, "templates/*.html.tmpl"))

// panelData renders the full panel page.
type panelData struct {
	ObjKind  string
	ObjID    int64
	BasePath string
	UsersURL string
	// EventsURL is empty when live updates are disabled, which also
	// suppresses the reload script.
	EventsURL string
	Rows      []template.HTML
}

// formData renders the add-user and edit-subject popover bodies.
type formData struct {
	PostURL string
	ObjID   int64
	Subject string
	Perms   []permField
}

// permField is one checkbox in a permissions form.
type permField struct {
	Name    string
	Label   string
	Help    template.HTML
	Checked bool
}

// rowData renders a single subject row. The id and class attributes on
// the root element are what the panel widget keys on, so they follow
// the row key exactly.
type rowData struct {
	Key     rowkey.Key
	Name    string
	Perms   []string
	EditURL string
}

func renderTemplate(name string, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func renderRow(srv *server.Server, objKind string, objID int64, sp store.SubjectPerms) ([]byte, error) {
	return renderTemplate("row.html.tmpl", rowData{
		Key:     sp.Subject.Key,
		Name:    sp.Subject.DisplayName(),
		Perms:   sp.Perms,
		EditURL: rowURL(srv, objKind, objID, sp.Subject.Key),
	})
}

// permFields expands a kind's permission list into checkbox fields,
// ticking the ones named in checked.
func permFields(kind *registry.KindDef, checked map[string]bool) ([]permField, error) {
	fields := make([]permField, 0, len(kind.Permissions))
	for _, perm := range kind.Permissions {
		help, err := perm.DescriptionHTML()
		if err != nil {
			return nil, fmt.Errorf("rendering help for %s: %w", perm.Name, err)
		}
		fields = append(fields, permField{
			Name:    perm.Name,
			Label:   perm.DisplayLabel(),
			Help:    help,
			Checked: checked[perm.Name],
		})
	}
	return fields, nil
}

func panelURL(srv *server.Server, objKind string, objID int64) string {
	return fmt.Sprintf("%s/%s/%d", srv.Config.BasePath, objKind, objID)
}

func usersURL(srv *server.Server, objKind string, objID int64) string {
	return panelURL(srv, objKind, objID) + "/users"
}

func rowURL(srv *server.Server, objKind string, objID int64, key rowkey.Key) string {
	return usersURL(srv, objKind, objID) + "/" + key.String()
}

func eventsURL(srv *server.Server, objKind string, objID int64) string {
	return panelURL(srv, objKind, objID) + "/events"
}
