// Package panel drives a per-object permissions panel against the
// mutation endpoint served by this module.
//
// A Controller manages one object's panel: it opens the add-user and
// edit-permissions popovers, submits their forms, deletes subject rows,
// and reconciles a View from the server's responses. The embedding
// surface renders the View and feeds user gestures back in through
// named bindings.
//
// # Wiring a panel
//
//	ctl, err := panel.New(panel.Config{
//	    EndpointURL: "https://admin.example.com/panel/vm/7/users",
//	    ObjectID:    7,
//	    Confirm:     promptUser,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctl.Init()
//
//	// Rows rendered with the page are seeded directly.
//	for _, markup := range initialRows {
//	    if err := ctl.SeedRow(markup); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Driving gestures
//
//	// The add-user control was clicked.
//	err = ctl.Fire(ctx, panel.BindAddUser, panel.Event{})
//
//	// The popover form was submitted with the user's edits applied.
//	form, _ := fragment.ParseForm(popoverContent)
//	form.Fields.Set("user", "alice")
//	err = ctl.Fire(ctx, panel.BindSubmit, panel.Event{Form: &form})
//
// # Server responses
//
// The endpoint answers a mutation in one of three shapes, told apart
// by Content-Type: a JSON string (a row identifier; that subject holds
// no permissions anymore and its row goes away), a JSON object (field
// validation errors, appended to the error region), or an HTML
// fragment (the subject's updated row, replaced in place or appended).
// See DecodeOutcome.
package panel
