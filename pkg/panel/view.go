package panel

import (
	"github.com/objperms/objperms/pkg/fragment"
	"github.com/objperms/objperms/pkg/rowkey"
)

// View is the panel state the controller reconciles: the ordered list
// of subject rows and the error region shown above the form. The
// embedding surface renders from it after every operation.
type View struct {
	rows   []fragment.Row
	errors []string
}

// Rows returns the rows in display order.
func (v *View) Rows() []fragment.Row {
	out := make([]fragment.Row, len(v.rows))
	copy(out, v.rows)
	return out
}

// Row returns the row with the given key, if present.
func (v *View) Row(key rowkey.Key) (fragment.Row, bool) {
	for _, r := range v.rows {
		if r.Key == key {
			return r, true
		}
	}
	return fragment.Row{}, false
}

// Errors returns the error region's messages in display order.
func (v *View) Errors() []string {
	out := make([]string, len(v.errors))
	copy(out, v.errors)
	return out
}

// upsert replaces the row with the same key in place, keeping its
// position, or appends when no such row exists. Reports whether a row
// was replaced.
func (v *View) upsert(row fragment.Row) bool {
	for i, r := range v.rows {
		if r.Key == row.Key {
			v.rows[i] = row
			return true
		}
	}
	v.rows = append(v.rows, row)
	return false
}

// remove deletes the row with the given key. Removing an absent row is
// not an error; the caller cannot know whether another actor got there
// first.
func (v *View) remove(key rowkey.Key) bool {
	for i, r := range v.rows {
		if r.Key == key {
			v.rows = append(v.rows[:i], v.rows[i+1:]...)
			return true
		}
	}
	return false
}

func (v *View) appendError(msg string) {
	v.errors = append(v.errors, msg)
}

func (v *View) clearErrors() {
	v.errors = nil
}
