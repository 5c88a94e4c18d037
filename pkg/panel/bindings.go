package panel

import (
	"context"
	"fmt"

	"github.com/objperms/objperms/pkg/fragment"
	"github.com/objperms/objperms/pkg/rowkey"
)

// Binding names the controller installs on Init. Embedders fire them
// from their event loop and may rebind any of them.
const (
	// BindAddUser is fired when the add-user control is clicked.
	BindAddUser = "add_user.click"

	// BindDelete is fired when a row's delete control is clicked.
	// Event.Key names the row.
	BindDelete = "delete.click"

	// BindPermissions is fired when a row's permissions link is
	// clicked. Event.Key names the row.
	BindPermissions = "permissions.click"

	// BindSubmit is fired when the popover form is submitted.
	// Event.Form carries the form with the user's edits applied.
	BindSubmit = "form.submit"
)

// Event carries the gesture context a binding fires with.
type Event struct {
	Key  rowkey.Key
	Form *fragment.Form
}

// Handler reacts to one fired binding.
type Handler func(ctx context.Context, ev Event) error

// bindingSet is a named handler registry. Binding a name that is
// already bound replaces the old handler, so rebinding any number of
// times leaves exactly one handler per name.
type bindingSet struct {
	handlers map[string]Handler
}

func newBindingSet() *bindingSet {
	return &bindingSet{handlers: map[string]Handler{}}
}

func (b *bindingSet) bind(name string, h Handler) {
	b.handlers[name] = h
}

func (b *bindingSet) release(name string) {
	delete(b.handlers, name)
}

func (b *bindingSet) fire(ctx context.Context, name string, ev Event) error {
	h, ok := b.handlers[name]
	if !ok {
		return fmt.Errorf("panel: nothing bound to %q", name)
	}
	return h(ctx, ev)
}
