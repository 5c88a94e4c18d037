package rowkey

import (
	"fmt"
	"regexp"
	"strconv"
)

//go:generate go run github.com/dmarkham/enumer -type Kind -trimprefix Kind -transform lower -json -output kind.gen.go

// Kind is the kind of subject a panel row stands for.
type Kind int

const (
	KindUser Kind = iota
	KindGroup
)

// Prefix returns the row identifier prefix for the kind, trailing
// underscore included ("user_", "group_").
func (k Kind) Prefix() string {
	return k.String() + "_"
}

// Param returns the request parameter name used when posting a mutation
// for this kind of subject.
func (k Kind) Param() string {
	return k.String()
}

// Key identifies a panel row: a subject kind plus its numeric id. Its
// string form is the identifier carried on row elements and on the wire
// ("user_42", "group_13"). Server and client agree on this format and on
// nothing looser.
type Key struct {
	Kind Kind
	ID   int64
}

var keyPattern = regexp.MustCompile(`^(user|group)_([0-9]+)$`)

// Parse converts a row identifier into a Key. The identifier must match
// ^(user|group)_[0-9]+$ exactly; anything else is rejected rather than
// best-effort stripped.
func Parse(s string) (Key, error) {
	m := keyPattern.FindStringSubmatch(s)
	if m == nil {
		return Key{}, fmt.Errorf("rowkey: malformed row identifier %q", s)
	}

	kind, err := KindString(m[1])
	if err != nil {
		return Key{}, fmt.Errorf("rowkey: %w", err)
	}

	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("rowkey: row identifier %q: %w", s, err)
	}

	return Key{Kind: kind, ID: id}, nil
}

func UserKey(id int64) Key {
	return Key{Kind: KindUser, ID: id}
}

func GroupKey(id int64) Key {
	return Key{Kind: KindGroup, ID: id}
}

func (k Key) String() string {
	return k.Kind.Prefix() + strconv.FormatInt(k.ID, 10)
}

// IsZero reports whether the key is the zero value. A zero key is never a
// valid row identifier in stored data; ids start at 1.
func (k Key) IsZero() bool {
	return k == Key{}
}
