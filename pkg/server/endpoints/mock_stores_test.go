package endpoints

import (
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/mock"

	"github.com/objperms/objperms/pkg/config"
	"github.com/objperms/objperms/pkg/events"
	"github.com/objperms/objperms/pkg/registry"
	"github.com/objperms/objperms/pkg/rowkey"
	"github.com/objperms/objperms/pkg/server"
	"github.com/objperms/objperms/pkg/server/store"
)

// MockSubjectsStore implements store.SubjectsStore for testing using testify/mock
type MockSubjectsStore struct {
	mock.Mock
}

func NewMockSubjectsStore() *MockSubjectsStore {
	return &MockSubjectsStore{}
}

func (m *MockSubjectsStore) FindUserByUsername(username string) (*store.Subject, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Subject), args.Error(1)
}

func (m *MockSubjectsStore) FetchSubject(key rowkey.Key) (*store.Subject, error) {
	args := m.Called(key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Subject), args.Error(1)
}

func (m *MockSubjectsStore) SubjectExists(key rowkey.Key) bool {
	args := m.Called(key)
	return args.Bool(0)
}

// MockGrantsStore implements store.GrantsStore for testing using testify/mock
type MockGrantsStore struct {
	mock.Mock
}

func NewMockGrantsStore() *MockGrantsStore {
	return &MockGrantsStore{}
}

func (m *MockGrantsStore) GetPerms(subject rowkey.Key, objKind string, objID int64) ([]string, error) {
	args := m.Called(subject, objKind, objID)
	perms, _ := args.Get(0).([]string)
	return perms, args.Error(1)
}

func (m *MockGrantsStore) Grant(subject rowkey.Key, objKind string, objID int64, perm string) error {
	args := m.Called(subject, objKind, objID, perm)
	return args.Error(0)
}

func (m *MockGrantsStore) Revoke(subject rowkey.Key, objKind string, objID int64, perm string) error {
	args := m.Called(subject, objKind, objID, perm)
	return args.Error(0)
}

func (m *MockGrantsStore) SetPerms(subject rowkey.Key, objKind string, objID int64, perms []string) ([]string, []string, error) {
	args := m.Called(subject, objKind, objID, perms)
	granted, _ := args.Get(0).([]string)
	revoked, _ := args.Get(1).([]string)
	return granted, revoked, args.Error(2)
}

func (m *MockGrantsStore) RevokeAll(subject rowkey.Key, objKind string, objID int64) ([]string, error) {
	args := m.Called(subject, objKind, objID)
	removed, _ := args.Get(0).([]string)
	return removed, args.Error(1)
}

func (m *MockGrantsStore) Subjects(objKind string, objID int64, limit int) ([]store.SubjectPerms, error) {
	args := m.Called(objKind, objID, limit)
	rows, _ := args.Get(0).([]store.SubjectPerms)
	return rows, args.Error(1)
}

func (m *MockGrantsStore) HasAnyPermOnKind(subject rowkey.Key, objKind string) (bool, error) {
	args := m.Called(subject, objKind)
	return args.Bool(0), args.Error(1)
}

func (m *MockGrantsStore) ObjectsWithAnyPerm(subject rowkey.Key, objKind string) ([]int64, error) {
	args := m.Called(subject, objKind)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

// testDefinitions declares one kind for endpoint tests.
const testDefinitions = `
kinds:
  - kind: vm
    permissions:
      - admin
      - name: start
        label: Start
        description: May **start** the virtual machine.
      - power_off
`

// newPanelTestServer wires a server around mock stores with every panel
// route registered. No database sits behind it.
func newPanelTestServer(t *testing.T, subjects store.SubjectsStore, grants store.GrantsStore) *server.Server {
	return newPanelTestServerWithConfig(t, &config.PanelConfig{
		ListenAddr:         "127.0.0.1:0",
		BasePath:           "/panel",
		SessionTTL:         3600,
		RowListLimit:       1000,
		LiveUpdatesEnabled: true,
	}, subjects, grants)
}

// newPanelTestServerWithConfig is newPanelTestServer under the caller's
// config.
func newPanelTestServerWithConfig(t *testing.T, cfg *config.PanelConfig, subjects store.SubjectsStore, grants store.GrantsStore) *server.Server {
	t.Helper()

	reg, err := registry.Load(strings.NewReader(testDefinitions))
	if err != nil {
		t.Fatalf("loading definitions: %v", err)
	}

	srv := &server.Server{
		Config:   cfg,
		Registry: reg,
		Router:   mux.NewRouter().UseEncodedPath(),
		Subjects: subjects,
		Grants:   grants,
		Bus:      events.NewBus(),
	}
	RegisterAll(srv)
	return srv
}
