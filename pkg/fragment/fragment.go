// Package fragment parses the HTML fragments the panel exchanges: row
// markup returned by mutations and form markup served into the popover.
// A fragment that does not carry a well-formed row identity is rejected
// rather than guessed at.
package fragment

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/objperms/objperms/pkg/rowkey"
)

// Row is one parsed panel row. HTML keeps the markup exactly as
// received so it can be re-rendered without a serialization pass.
// EditURL is the href of the row's permissions link, when the row
// carries one.
type Row struct {
	Key     rowkey.Key
	Name    string
	EditURL string
	HTML    string
}

// ParseRow parses a fragment whose single root element is a panel row.
// The root must carry an id in row-key form and a class naming the same
// kind.
func ParseRow(markup string) (Row, error) {
	root, err := parseRoot(markup)
	if err != nil {
		return Row{}, err
	}

	id := attr(root, "id")
	if id == "" {
		return Row{}, fmt.Errorf("row fragment has no id attribute")
	}
	key, err := rowkey.Parse(id)
	if err != nil {
		return Row{}, fmt.Errorf("row fragment id: %w", err)
	}

	if !hasClass(root, key.Kind.String()) {
		return Row{}, fmt.Errorf("row fragment %s is missing the %q class", id, key.Kind)
	}

	row := Row{Key: key, HTML: markup}
	if name := findByClass(root, "name"); name != nil {
		row.Name = strings.TrimSpace(text(name))
	}
	if link := findByClass(root, "permissions"); link != nil {
		row.EditURL = attr(link, "href")
	}
	return row, nil
}

// Form describes the first form element found in a fragment, with the
// values it would submit untouched.
type Form struct {
	ID     string
	Action string
	Method string
	Fields url.Values
}

// ParseForm extracts the form from popover markup. Checkbox and radio
// inputs contribute values only when checked, matching what a browser
// would submit.
func ParseForm(markup string) (Form, error) {
	nodes, err := parseFragment(markup)
	if err != nil {
		return Form{}, err
	}

	var formNode *html.Node
	for _, n := range nodes {
		if found := findElement(n, atom.Form); found != nil {
			formNode = found
			break
		}
	}
	if formNode == nil {
		return Form{}, fmt.Errorf("fragment contains no form")
	}

	form := Form{
		ID:     attr(formNode, "id"),
		Action: attr(formNode, "action"),
		Method: strings.ToUpper(attr(formNode, "method")),
		Fields: url.Values{},
	}
	if form.Method == "" {
		form.Method = "GET"
	}

	collectInputs(formNode, form.Fields)
	return form, nil
}

func parseFragment(markup string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	return html.ParseFragment(strings.NewReader(markup), ctx)
}

// parseRoot returns the fragment's single root element, rejecting
// fragments with zero or several.
func parseRoot(markup string) (*html.Node, error) {
	nodes, err := parseFragment(markup)
	if err != nil {
		return nil, fmt.Errorf("parsing fragment: %w", err)
	}

	var elements []*html.Node
	for _, n := range nodes {
		switch n.Type {
		case html.ElementNode:
			elements = append(elements, n)
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				return nil, fmt.Errorf("fragment has text outside its root element")
			}
		}
	}

	if len(elements) != 1 {
		return nil, fmt.Errorf("fragment has %d root elements, want 1", len(elements))
	}
	return elements[0], nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(text(c))
	}
	return sb.String()
}

func collectInputs(n *html.Node, fields url.Values) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Input {
		name := attr(n, "name")
		if name != "" {
			switch attr(n, "type") {
			case "checkbox", "radio":
				if hasAttr(n, "checked") {
					fields.Add(name, valueOr(n, "on"))
				}
			case "submit", "button", "reset", "image", "file":
				// not part of the submitted state
			default:
				fields.Add(name, attr(n, "value"))
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectInputs(c, fields)
	}
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func valueOr(n *html.Node, fallback string) string {
	if v := attr(n, "value"); v != "" {
		return v
	}
	return fallback
}
