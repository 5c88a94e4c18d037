package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/objperms/objperms/pkg/fragment"
	"github.com/objperms/objperms/pkg/rowkey"
)

// ConfirmFunc asks the user to approve a deletion, blocking until they
// answer. The prompt names the subject being removed.
type ConfirmFunc func(prompt string) bool

// Config configures one panel controller. EndpointURL and ObjectID are
// required; the rest default sensibly.
type Config struct {
	// EndpointURL is the panel's mutation endpoint. It also serves the
	// add-user form.
	EndpointURL string

	// ObjectID identifies the object whose permissions the panel
	// manages. It is sent as the obj parameter on every mutation.
	ObjectID int64

	// HTTPClient overrides http.DefaultClient.
	HTTPClient *http.Client

	// Overlay renders popovers. Defaults to an in-memory Popover.
	Overlay Overlay

	// Confirm guards deletions. When nil, deletions proceed
	// unprompted.
	Confirm ConfirmFunc
}

// Controller drives the permissions panel for one object: it opens the
// add and edit popovers, submits their forms, deletes rows, and
// reconciles the View from the server's responses. Methods are meant
// to be driven from a single goroutine, typically the embedder's event
// loop; the controller does no locking of its own.
type Controller struct {
	cfg      Config
	base     *url.URL
	client   *http.Client
	overlay  Overlay
	confirm  ConfirmFunc
	bindings *bindingSet
	view     *View
}

func New(cfg Config) (*Controller, error) {
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("panel: EndpointURL is required")
	}
	if cfg.ObjectID <= 0 {
		return nil, fmt.Errorf("panel: ObjectID is required")
	}
	base, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("panel: EndpointURL: %w", err)
	}

	c := &Controller{
		cfg:      cfg,
		base:     base,
		client:   cfg.HTTPClient,
		overlay:  cfg.Overlay,
		confirm:  cfg.Confirm,
		bindings: newBindingSet(),
		view:     &View{},
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	if c.overlay == nil {
		c.overlay = &Popover{}
	}
	return c, nil
}

// Init installs the controller's bindings. Running it again rebinds
// them in place, so embedders that swap panel content can call it
// after every swap without doubling handlers.
func (c *Controller) Init() {
	c.bindings.bind(BindAddUser, func(ctx context.Context, _ Event) error {
		return c.OpenAddUser(ctx)
	})
	c.bindings.bind(BindDelete, func(ctx context.Context, ev Event) error {
		if ev.Key.IsZero() {
			return fmt.Errorf("panel: delete fired without a row key")
		}
		return c.Delete(ctx, ev.Key)
	})
	c.bindings.bind(BindPermissions, func(ctx context.Context, ev Event) error {
		if ev.Key.IsZero() {
			return fmt.Errorf("panel: permissions fired without a row key")
		}
		return c.OpenEditPermissions(ctx, ev.Key)
	})
	c.bindings.bind(BindSubmit, c.submitBinding)
}

func (c *Controller) submitBinding(ctx context.Context, ev Event) error {
	if ev.Form == nil {
		return fmt.Errorf("panel: submit fired without a form")
	}
	return c.Submit(ctx, *ev.Form)
}

// Fire runs the handler bound to name. Unbound names are an error so a
// miswired embedder fails fast instead of dropping gestures.
func (c *Controller) Fire(ctx context.Context, name string, ev Event) error {
	return c.bindings.fire(ctx, name, ev)
}

// Bind replaces the handler for name.
func (c *Controller) Bind(name string, h Handler) {
	c.bindings.bind(name, h)
}

// Release removes the handler for name.
func (c *Controller) Release(name string) {
	c.bindings.release(name)
}

// View returns the panel state the controller reconciles.
func (c *Controller) View() *View {
	return c.view
}

// SeedRow inserts a server-rendered row without a round trip, for
// panels whose initial rows arrive with the page.
func (c *Controller) SeedRow(markup string) error {
	row, err := fragment.ParseRow(markup)
	if err != nil {
		return fmt.Errorf("panel: seed row: %w", err)
	}
	c.view.upsert(row)
	return nil
}

// OpenAddUser replaces any open popover with the add-user form fetched
// from the endpoint.
func (c *Controller) OpenAddUser(ctx context.Context) error {
	return c.openPopover(ctx, c.cfg.EndpointURL)
}

// OpenEditPermissions replaces any open popover with the edit form for
// the given row, fetched from the row's own permissions link.
func (c *Controller) OpenEditPermissions(ctx context.Context, key rowkey.Key) error {
	row, ok := c.view.Row(key)
	if !ok {
		return fmt.Errorf("panel: no row %s", key)
	}
	if row.EditURL == "" {
		return fmt.Errorf("panel: row %s has no permissions link", key)
	}
	target, err := c.resolveURL(row.EditURL)
	if err != nil {
		return err
	}
	return c.openPopover(ctx, target)
}

func (c *Controller) openPopover(ctx context.Context, contentURL string) error {
	c.overlay.DestroyAll()

	content, err := c.fetch(ctx, contentURL)
	if err != nil {
		return err
	}

	c.overlay.Show(content, func() {
		// Showing a form always routes its submission through Submit,
		// whatever the embedder had bound before.
		c.bindings.bind(BindSubmit, c.submitBinding)
	})
	return nil
}

// Delete removes a subject's access after a blocking confirmation. The
// row goes away only when the server answers with its identifier; any
// other answer leaves the view as it was.
func (c *Controller) Delete(ctx context.Context, key rowkey.Key) error {
	row, ok := c.view.Row(key)
	if !ok {
		return fmt.Errorf("panel: no row %s", key)
	}

	name := row.Name
	if name == "" {
		name = key.String()
	}
	if c.confirm != nil && !c.confirm("Delete "+name+"?") {
		return nil
	}

	c.overlay.DestroyAll()

	form := url.Values{}
	form.Set(key.Kind.Param(), strconv.FormatInt(key.ID, 10))
	form.Set("obj", strconv.FormatInt(c.cfg.ObjectID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EndpointURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("panel: delete %s: %w", key, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("panel: delete %s: %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("panel: delete %s: reading response: %w", key, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("panel: delete %s: unexpected status %s", key, resp.Status)
	}

	var rowID string
	if err := json.Unmarshal(body, &rowID); err != nil {
		// Anything but a bare identifier means the server declined;
		// the row stays.
		return nil
	}
	gone, err := rowkey.Parse(rowID)
	if err != nil {
		return fmt.Errorf("panel: delete %s: %w", key, err)
	}
	c.view.remove(gone)
	return nil
}

// Submit clears the error region, posts the form to its action as
// multipart form data, and reconciles the view from the response.
func (c *Controller) Submit(ctx context.Context, form fragment.Form) error {
	c.view.clearErrors()

	action, err := c.resolveURL(form.Action)
	if err != nil {
		return err
	}

	body, contentType, err := multipartBody(form.Fields)
	if err != nil {
		return fmt.Errorf("panel: encoding form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action, body)
	if err != nil {
		return fmt.Errorf("panel: submitting form: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("panel: submitting form: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("panel: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("panel: submitting form: unexpected status %s", resp.Status)
	}

	outcome, err := DecodeOutcome(resp.Header.Get("Content-Type"), raw)
	if err != nil {
		return fmt.Errorf("panel: %w", err)
	}
	c.reconcile(outcome)
	return nil
}

// reconcile applies a decoded outcome to the view. Validation errors
// land in the error region with the popover left open; the other two
// shapes close it.
func (c *Controller) reconcile(o *Outcome) {
	switch {
	case o.ValidationErrors != nil:
		for _, field := range sortedFields(o.ValidationErrors) {
			c.view.appendError(o.ValidationErrors[field])
		}
	case o.DeletionSignal != nil:
		c.overlay.DestroyAll()
		c.view.remove(*o.DeletionSignal)
	case o.UpsertFragment != nil:
		c.overlay.DestroyAll()
		c.view.upsert(*o.UpsertFragment)
	}
}

func sortedFields(m map[string]string) []string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (c *Controller) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("panel: fetching %s: %w", rawURL, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("panel: fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("panel: fetching %s: unexpected status %s", rawURL, resp.Status)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("panel: fetching %s: %w", rawURL, err)
	}
	return string(content), nil
}

func (c *Controller) resolveURL(href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("panel: resolving %q: %w", href, err)
	}
	return c.base.ResolveReference(ref).String(), nil
}

// multipartBody encodes fields the way a browser submits a file-less
// form with enctype multipart/form-data. Field order is stable so
// request bodies are reproducible.
func multipartBody(fields url.Values) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range fields[name] {
			if err := w.WriteField(name, value); err != nil {
				return nil, "", err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
