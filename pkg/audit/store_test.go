package audit

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/objperms/objperms/pkg/rowkey"
)

func TestStoreSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStoreWithDB(db)

	event := GrantEvent{
		Actor:    "alice",
		ClientIP: "10.0.0.1",
		Subject:  rowkey.UserKey(3),
		ObjKind:  "vm",
		ObjID:    7,
		Perms:    []string{"admin"},
		Success:  true,
	}

	mock.ExpectExec(`INSERT INTO audit_messages`).
		WithArgs(
			FacilityAuthPriv,  // facility
			int(SeverityInfo), // severity
			sqlmock.AnyArg(),  // timestamp
			sqlmock.AnyArg(),  // hostname
			"objperms",        // appname
			sqlmock.AnyArg(),  // procid
			"grant",           // msgid
			sqlmock.AnyArg(),  // sdata (JSON)
			sqlmock.AnyArg(),  // message
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.Save(event)
	if err != nil {
		t.Errorf("Save() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStoreSaveNilDB(t *testing.T) {
	store := NewStoreWithDB(nil)

	err := store.Save(RevokeEvent{Subject: rowkey.UserKey(1), Success: true})
	if err != nil {
		t.Errorf("Save() with nil db should be a no-op, got %v", err)
	}
}
