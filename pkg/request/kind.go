package request

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the coarse classification of network activity triggered by a browser action.
type Kind int

const (
	// None means no request was observed during the window.
	None Kind = iota
	// HTTP is a classic, blocking or navigational page request.
	HTTP
	// XHR is a non-blocking, in-page asynchronous request (XMLHttpRequest or fetch).
	XHR
)

var kindNames = map[Kind]string{
	None: "NONE",
	HTTP: "HTTP",
	XHR:  "XHR",
}

// String returns the guard vocabulary name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the three defined kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind accepts the guard names and their common aliases, case-insensitively.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none", "no_request", "norequest":
		return None, nil
	case "http", "page", "document", "navigation":
		return HTTP, nil
	case "xhr", "async", "ajax", "fetch":
		return XHR, nil
	default:
		return None, fmt.Errorf("unknown request kind %q (valid: none, http, xhr)", raw)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid request kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// KindSet is an immutable, non-empty set of kinds.
type KindSet struct {
	bits uint8
}

// NewKindSet builds a set from the given kinds. An empty or invalid input is an error.
func NewKindSet(kinds ...Kind) (KindSet, error) {
	var set KindSet
	for _, k := range kinds {
		if !k.Valid() {
			return KindSet{}, fmt.Errorf("invalid request kind %d", int(k))
		}
		set.bits |= 1 << uint(k)
	}
	if set.bits == 0 {
		return KindSet{}, fmt.Errorf("kind set must not be empty")
	}
	return set, nil
}

// MustKindSet is NewKindSet that panics on error. Intended for package-level constants.
func MustKindSet(kinds ...Kind) KindSet {
	set, err := NewKindSet(kinds...)
	if err != nil {
		panic(err)
	}
	return set
}

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool {
	if !k.Valid() {
		return false
	}
	return s.bits&(1<<uint(k)) != 0
}

// Empty reports whether the set is the zero value.
func (s KindSet) Empty() bool {
	return s.bits == 0
}

// Len returns the number of kinds in the set.
func (s KindSet) Len() int {
	return len(s.Kinds())
}

// Kinds returns the members in reporting order.
func (s KindSet) Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := range kindNames {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Single returns the only member when the set is a singleton.
func (s KindSet) Single() (Kind, bool) {
	kinds := s.Kinds()
	if len(kinds) != 1 {
		return None, false
	}
	return kinds[0], true
}

func (s KindSet) String() string {
	kinds := s.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, "|")
}
