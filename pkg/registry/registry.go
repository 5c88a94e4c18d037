package registry

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

// permNamePattern is the only form a permission or kind name may take.
// Names become form field names and CSS-adjacent tokens, so anything
// outside this alphabet is rejected at load time.
var permNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Perm is one permission in a kind's vocabulary. Label and Description
// are presentational; Name is the identity used in grants.
type Perm struct {
	Name        string `yaml:"name"`
	Label       string `yaml:"label,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// UnmarshalYAML for Perm handles both scalar (just the name) and mapping forms
func (p *Perm) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		p.Name = value.Value
		return nil
	}
	type permAlias Perm
	return value.Decode((*permAlias)(p))
}

// DisplayLabel returns the label to show next to the permission's
// checkbox, deriving one from the name when none was declared.
func (p Perm) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	label := strings.ReplaceAll(p.Name, "_", " ")
	return strings.ToUpper(label[:1]) + label[1:]
}

var markdown = goldmark.New()

// DescriptionHTML renders the permission's Markdown description for the
// edit form's help column. The result is trusted template content.
func (p Perm) DescriptionHTML() (template.HTML, error) {
	if p.Description == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(p.Description), &buf); err != nil {
		return "", fmt.Errorf("rendering description for %q: %w", p.Name, err)
	}
	return template.HTML(buf.String()), nil
}

// KindDef declares the permission vocabulary for one object kind.
type KindDef struct {
	Kind        string `yaml:"kind"`
	Permissions []Perm `yaml:"permissions"`
}

// Perm returns the named permission, if declared for this kind.
func (k *KindDef) Perm(name string) (Perm, bool) {
	for _, p := range k.Permissions {
		if p.Name == name {
			return p, true
		}
	}
	return Perm{}, false
}

// Names returns the permission names in declaration order. Declaration
// order is display order everywhere the vocabulary is shown.
func (k *KindDef) Names() []string {
	names := make([]string, 0, len(k.Permissions))
	for _, p := range k.Permissions {
		names = append(names, p.Name)
	}
	return names
}

// Registry is the full set of kind declarations from one definitions file.
type Registry struct {
	Kinds []KindDef `yaml:"kinds"`
}

// Kind returns the declaration for an object kind, if present.
func (r *Registry) Kind(name string) (*KindDef, bool) {
	for i := range r.Kinds {
		if r.Kinds[i].Kind == name {
			return &r.Kinds[i], true
		}
	}
	return nil, false
}

// Load parses and validates a definitions document.
func Load(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parsing definitions: %w", err)
	}
	if err := reg.validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// LoadFile parses and validates the definitions file at path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

func (r *Registry) validate() error {
	if len(r.Kinds) == 0 {
		return fmt.Errorf("no kinds defined")
	}

	seenKinds := make(map[string]bool)
	for _, k := range r.Kinds {
		if !permNamePattern.MatchString(k.Kind) {
			return fmt.Errorf("invalid kind name %q", k.Kind)
		}
		if seenKinds[k.Kind] {
			return fmt.Errorf("kind %q defined twice", k.Kind)
		}
		seenKinds[k.Kind] = true

		if len(k.Permissions) == 0 {
			return fmt.Errorf("kind %q has no permissions", k.Kind)
		}
		seenPerms := make(map[string]bool)
		for _, p := range k.Permissions {
			if !permNamePattern.MatchString(p.Name) {
				return fmt.Errorf("kind %q: invalid permission name %q", k.Kind, p.Name)
			}
			if seenPerms[p.Name] {
				return fmt.Errorf("kind %q: permission %q defined twice", k.Kind, p.Name)
			}
			seenPerms[p.Name] = true
		}
	}
	return nil
}
