// Package script loads and parametrizes browser-side JavaScript resources.
package script

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed resources/*.js
var resources embed.FS

var placeholder = regexp.MustCompile(`\{\d+\}`)

const (
	// TwoClicksWithTimeout clicks {0} immediately and {1} after {2} milliseconds.
	TwoClicksWithTimeout = "two-clicks-with-timeout"
	// RequestGuard installs the request classification hook; {0} is the command.
	RequestGuard = "request-guard"
)

// JavaScript is a named browser-side program. Args records the values the
// program was parametrized with so drivers that cannot run JavaScript can
// dispatch on Name instead.
type JavaScript struct {
	Name   string
	Source string
	Args   []string
}

// FromResource loads an embedded resource by name, with or without the .js suffix.
func FromResource(name string) (JavaScript, error) {
	base := strings.TrimSuffix(path.Base(name), ".js")
	data, err := resources.ReadFile("resources/" + base + ".js")
	if err != nil {
		return JavaScript{}, fmt.Errorf("load script %q: %w", name, err)
	}
	return JavaScript{Name: base, Source: string(data)}, nil
}

// MustFromResource is FromResource that panics when the resource is missing.
func MustFromResource(name string) JavaScript {
	js, err := FromResource(name)
	if err != nil {
		panic(err)
	}
	return js
}

// FromString wraps inline source.
func FromString(source string) JavaScript {
	return JavaScript{Name: "inline", Source: source}
}

// Resources lists the embedded resource names.
func Resources() []string {
	entries, err := fs.ReadDir(resources, "resources")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".js"))
	}
	sort.Strings(names)
	return names
}

// Parametrize substitutes {0}, {1}, ... with JavaScript literals of args.
// Strings and fmt.Stringers (locators) become quoted strings, durations become
// milliseconds, numbers and booleans are written as-is.
// Placeholders are replaced in one pass, so arguments containing "{N}" are
// left as written; placeholders without a matching argument are kept.
func (js JavaScript) Parametrize(args ...any) JavaScript {
	out := JavaScript{Name: js.Name, Args: make([]string, len(args))}
	literals := make([]string, len(args))
	for i, arg := range args {
		literals[i], out.Args[i] = literalFor(arg)
	}
	out.Source = placeholder.ReplaceAllStringFunc(js.Source, func(m string) string {
		i, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || i >= len(literals) {
			return m
		}
		return literals[i]
	})
	return out
}

func (js JavaScript) String() string {
	return js.Source
}

func literalFor(arg any) (literal string, raw string) {
	switch v := arg.(type) {
	case time.Duration:
		ms := strconv.FormatInt(v.Milliseconds(), 10)
		return ms, ms
	case int:
		s := strconv.Itoa(v)
		return s, s
	case int64:
		s := strconv.FormatInt(v, 10)
		return s, s
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return s, s
	case bool:
		s := strconv.FormatBool(v)
		return s, s
	case string:
		return quote(v), v
	case fmt.Stringer:
		s := v.String()
		return quote(s), s
	default:
		s := fmt.Sprint(v)
		return quote(s), s
	}
}

func quote(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(data)
}

// Commands and replies of the RequestGuard resource.
const (
	GuardArm     = "arm"
	GuardObserve = "observe"
	GuardDisarm  = "disarm"

	// GuardReplyActive answers GuardArm when a window is already armed.
	GuardReplyActive = "active"
	// GuardReplyClosed answers GuardObserve when no window is armed.
	GuardReplyClosed = "closed"
)

// GuardRecord is one request recorded by the RequestGuard hook. At is in
// milliseconds since the Unix epoch, as reported by the page clock.
type GuardRecord struct {
	Kind string `json:"kind"`
	At   int64  `json:"at"`
	URL  string `json:"url,omitempty"`
}
