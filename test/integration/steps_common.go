package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/objperms/objperms/pkg/fragment"
	"github.com/objperms/objperms/pkg/rowkey"
)

// StepsContext holds state shared between step definitions
type StepsContext struct {
	tc           *TestContext
	response     *http.Response
	responseBody []byte
	gated        *ServerInstance
}

// NewStepsContext creates a new steps context
func NewStepsContext(tc *TestContext) *StepsContext {
	return &StepsContext{tc: tc}
}

// RegisterSteps registers all step definitions
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	// Background steps
	sc.Step(`^a panel server is running$`, s.aPanelServerIsRunning)
	sc.Step(`^the definitions file registers kind "([^"]*)"$`, s.theDefinitionsFileRegistersKind)
	sc.Step(`^a user "([^"]*)" with id (\d+) exists$`, s.aUserExists)
	sc.Step(`^a group "([^"]*)" with id (\d+) exists$`, s.aGroupExists)
	sc.Step(`^user (\d+) belongs to group (\d+)$`, s.userBelongsToGroup)
	sc.Step(`^"([^"]*)" holds "([^"]*)" on ([a-z][a-z0-9_]*) (\d+)$`, s.subjectHolds)
	sc.Step(`^no grants exist$`, s.noGrantsExist)

	// Panel gestures
	sc.Step(`^I open the panel for ([a-z][a-z0-9_]*) (\d+)$`, s.iOpenThePanelFor)
	sc.Step(`^I fetch the add-user form for ([a-z][a-z0-9_]*) (\d+)$`, s.iFetchTheAddUserForm)
	sc.Step(`^I fetch the edit form for "([^"]*)" on ([a-z][a-z0-9_]*) (\d+)$`, s.iFetchTheEditForm)
	sc.Step(`^I add user "([^"]*)" to ([a-z][a-z0-9_]*) (\d+) with permissions "([^"]*)"$`, s.iAddUserWithPermissions)
	sc.Step(`^I set permissions for "([^"]*)" on ([a-z][a-z0-9_]*) (\d+) to "([^"]*)"$`, s.iSetPermissionsTo)
	sc.Step(`^I clear every permission for "([^"]*)" on ([a-z][a-z0-9_]*) (\d+)$`, s.iClearEveryPermission)
	sc.Step(`^I post a delete of "([^"]*)" from ([a-z][a-z0-9_]*) (\d+)$`, s.iPostADelete)

	// Response steps
	sc.Step(`^the response status should be (\d+)$`, s.theResponseStatusShouldBe)
	sc.Step(`^the response should be a row "([^"]*)" named "([^"]*)"$`, s.theResponseShouldBeARowNamed)
	sc.Step(`^the row should list permissions "([^"]*)"$`, s.theRowShouldListPermissions)
	sc.Step(`^the response should flag field "([^"]*)" with "([^"]*)"$`, s.theResponseShouldFlagField)
	sc.Step(`^the response should be the deletion signal "([^"]*)"$`, s.theResponseShouldBeTheDeletionSignal)
	sc.Step(`^the panel page should contain rows "([^"]*)"$`, s.thePanelPageShouldContainRows)

	// Stored-state steps
	sc.Step(`^"([^"]*)" should hold exactly "([^"]*)" on ([a-z][a-z0-9_]*) (\d+)$`, s.shouldHoldExactly)
	sc.Step(`^"([^"]*)" should hold nothing on ([a-z][a-z0-9_]*) (\d+)$`, s.shouldHoldNothing)
}

// HTTP helpers

func (s *StepsContext) do(req *http.Request) error {
	resp, err := s.tc.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	s.response = resp

	s.responseBody, err = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return err
}

func (s *StepsContext) get(rawURL string) error {
	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return err
	}
	return s.do(req)
}

// postMultipart posts fields the way the panel widget submits its
// popover forms.
func (s *StepsContext) postMultipart(rawURL string, fields url.Values) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, values := range fields {
		for _, value := range values {
			if err := w.WriteField(name, value); err != nil {
				return err
			}
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest("POST", rawURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.do(req)
}

func (s *StepsContext) panelURL(objKind string, objID int) string {
	return fmt.Sprintf("%s/panel/%s/%d", s.tc.ServerURL, objKind, objID)
}

// Background steps

func (s *StepsContext) aPanelServerIsRunning() error {
	// The suite boots one shared server before scenarios run
	return nil
}

func (s *StepsContext) theDefinitionsFileRegistersKind(kind string) error {
	var count int64
	if err := s.tc.DB.Raw(`SELECT COUNT(*) FROM registered_permissions WHERE obj_kind = ?`, kind).Scan(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("kind %q has no registered permissions", kind)
	}
	return nil
}

func (s *StepsContext) aUserExists(username string, id int) error {
	return s.tc.DB.Exec(`
		INSERT INTO users (id, username) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
	`, id, username).Error
}

func (s *StepsContext) aGroupExists(name string, id int) error {
	return s.tc.DB.Exec(`
		INSERT INTO groups (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, id, name).Error
}

func (s *StepsContext) userBelongsToGroup(userID, groupID int) error {
	return s.tc.DB.Exec(`
		INSERT INTO group_members (group_id, user_id) VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, groupID, userID).Error
}

func (s *StepsContext) subjectHolds(subject, permsCSV, objKind string, objID int) error {
	key, err := rowkey.Parse(subject)
	if err != nil {
		return err
	}

	column := "user_id"
	if key.Kind == rowkey.KindGroup {
		column = "group_id"
	}

	for _, perm := range splitCSV(permsCSV) {
		err := s.tc.DB.Exec(`
			INSERT INTO object_permissions (obj_kind, obj_id, `+column+`, permission)
			VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, objKind, objID, key.ID, perm).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *StepsContext) noGrantsExist() error {
	return s.tc.DB.Exec(`DELETE FROM object_permissions`).Error
}

// Panel gestures

func (s *StepsContext) iOpenThePanelFor(objKind string, objID int) error {
	return s.get(s.panelURL(objKind, objID))
}

func (s *StepsContext) iFetchTheAddUserForm(objKind string, objID int) error {
	return s.get(s.panelURL(objKind, objID) + "/users")
}

func (s *StepsContext) iFetchTheEditForm(subject, objKind string, objID int) error {
	return s.get(s.panelURL(objKind, objID) + "/users/" + subject)
}

func (s *StepsContext) iAddUserWithPermissions(username, objKind string, objID int, permsCSV string) error {
	fields := url.Values{}
	fields.Set("user", username)
	fields.Set("obj", strconv.Itoa(objID))
	for _, perm := range splitCSV(permsCSV) {
		fields.Set(perm, "on")
	}
	return s.postMultipart(s.panelURL(objKind, objID)+"/users", fields)
}

func (s *StepsContext) iSetPermissionsTo(subject, objKind string, objID int, permsCSV string) error {
	fields := url.Values{}
	fields.Set("obj", strconv.Itoa(objID))
	for _, perm := range splitCSV(permsCSV) {
		fields.Set(perm, "on")
	}
	return s.postMultipart(s.panelURL(objKind, objID)+"/users/"+subject, fields)
}

func (s *StepsContext) iClearEveryPermission(subject, objKind string, objID int) error {
	fields := url.Values{}
	fields.Set("obj", strconv.Itoa(objID))
	return s.postMultipart(s.panelURL(objKind, objID)+"/users/"+subject, fields)
}

// iPostADelete sends the widget's delete shape: a urlencoded body with
// just the subject id and the object id.
func (s *StepsContext) iPostADelete(subject, objKind string, objID int) error {
	key, err := rowkey.Parse(subject)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set(key.Kind.Param(), strconv.FormatInt(key.ID, 10))
	form.Set("obj", strconv.Itoa(objID))

	req, err := http.NewRequest("POST", s.panelURL(objKind, objID)+"/users", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return s.do(req)
}

// Response steps

func (s *StepsContext) theResponseStatusShouldBe(expectedStatus int) error {
	if s.response.StatusCode != expectedStatus {
		return fmt.Errorf("expected status %d, got %d: %s", expectedStatus, s.response.StatusCode, string(s.responseBody))
	}
	return nil
}

func (s *StepsContext) theResponseShouldBeARowNamed(id, name string) error {
	row, err := fragment.ParseRow(string(s.responseBody))
	if err != nil {
		return fmt.Errorf("response is not a row fragment: %w (body: %s)", err, string(s.responseBody))
	}
	if row.Key.String() != id {
		return fmt.Errorf("expected row %q, got %q", id, row.Key)
	}
	if row.Name != name {
		return fmt.Errorf("expected row named %q, got %q", name, row.Name)
	}
	return nil
}

func (s *StepsContext) theRowShouldListPermissions(permsCSV string) error {
	for _, perm := range splitCSV(permsCSV) {
		want := fmt.Sprintf(`<span class="perm">%s</span>`, perm)
		if !strings.Contains(string(s.responseBody), want) {
			return fmt.Errorf("row does not list %q: %s", perm, string(s.responseBody))
		}
	}
	return nil
}

func (s *StepsContext) theResponseShouldFlagField(field, message string) error {
	var fieldErrors map[string]string
	if err := json.Unmarshal(s.responseBody, &fieldErrors); err != nil {
		return fmt.Errorf("response is not a field-error object: %w (body: %s)", err, string(s.responseBody))
	}
	if fieldErrors[field] != message {
		return fmt.Errorf("expected %q flagged with %q, got %v", field, message, fieldErrors)
	}
	return nil
}

func (s *StepsContext) theResponseShouldBeTheDeletionSignal(id string) error {
	var got string
	if err := json.Unmarshal(s.responseBody, &got); err != nil {
		return fmt.Errorf("response is not a deletion signal: %w (body: %s)", err, string(s.responseBody))
	}
	if got != id {
		return fmt.Errorf("expected deletion signal %q, got %q", id, got)
	}
	return nil
}

func (s *StepsContext) thePanelPageShouldContainRows(idsCSV string) error {
	for _, id := range splitCSV(idsCSV) {
		want := fmt.Sprintf(`id="%s"`, id)
		if !strings.Contains(string(s.responseBody), want) {
			return fmt.Errorf("panel page missing row %q", id)
		}
	}
	return nil
}

// Stored-state steps

func (s *StepsContext) shouldHoldExactly(subject, permsCSV, objKind string, objID int) error {
	got, err := s.grantsFor(subject, objKind, objID)
	if err != nil {
		return err
	}

	want := splitCSV(permsCSV)
	sort.Strings(want)
	if !reflect.DeepEqual(got, want) {
		return fmt.Errorf("expected %s to hold %v, got %v", subject, want, got)
	}
	return nil
}

func (s *StepsContext) shouldHoldNothing(subject, objKind string, objID int) error {
	got, err := s.grantsFor(subject, objKind, objID)
	if err != nil {
		return err
	}
	if len(got) != 0 {
		return fmt.Errorf("expected %s to hold nothing, got %v", subject, got)
	}
	return nil
}

func (s *StepsContext) grantsFor(subject, objKind string, objID int) ([]string, error) {
	key, err := rowkey.Parse(subject)
	if err != nil {
		return nil, err
	}

	column := "user_id"
	if key.Kind == rowkey.KindGroup {
		column = "group_id"
	}

	perms := []string{}
	err = s.tc.DB.Raw(`
		SELECT permission FROM object_permissions
		WHERE obj_kind = ? AND obj_id = ? AND `+column+` = ?
		ORDER BY permission
	`, objKind, objID, key.ID).Scan(&perms).Error
	return perms, err
}

func splitCSV(csv string) []string {
	if csv == "" {
		return []string{}
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
