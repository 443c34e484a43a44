// Package locator provides symbolic element identifiers. Resolving a locator to an
// element is the driver's job; everything else treats it as an opaque token.
package locator

import (
	"fmt"
	"strings"
)

// Strategy identifies how a locator addresses an element.
type Strategy string

const (
	StrategyID    Strategy = "id"
	StrategyName  Strategy = "name"
	StrategyCSS   Strategy = "css"
	StrategyXPath Strategy = "xpath"
)

// Locator is an addressable page element token.
type Locator struct {
	strategy Strategy
	value    string
}

// ID locates an element by its id attribute.
func ID(id string) Locator {
	return Locator{strategy: StrategyID, value: id}
}

// Name locates an element by its name attribute.
func Name(name string) Locator {
	return Locator{strategy: StrategyName, value: name}
}

// CSS locates an element by CSS selector.
func CSS(selector string) Locator {
	return Locator{strategy: StrategyCSS, value: selector}
}

// XPath locates an element by XPath expression.
func XPath(expr string) Locator {
	return Locator{strategy: StrategyXPath, value: expr}
}

// Parse reads the "strategy=value" form produced by String. A bare value is
// treated as an id, and a value starting with "//" as XPath.
func Parse(raw string) (Locator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Locator{}, fmt.Errorf("locator must not be empty")
	}
	if strings.HasPrefix(raw, "//") {
		return XPath(raw), nil
	}
	prefix, value, found := strings.Cut(raw, "=")
	if !found {
		return ID(raw), nil
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return Locator{}, fmt.Errorf("locator %q has empty value", raw)
	}
	switch Strategy(strings.ToLower(strings.TrimSpace(prefix))) {
	case StrategyID:
		return ID(value), nil
	case StrategyName:
		return Name(value), nil
	case StrategyCSS:
		return CSS(value), nil
	case StrategyXPath:
		return XPath(value), nil
	default:
		return Locator{}, fmt.Errorf("unknown locator strategy %q", prefix)
	}
}

// Strategy returns the addressing strategy.
func (l Locator) Strategy() Strategy {
	return l.strategy
}

// Value returns the raw strategy argument.
func (l Locator) Value() string {
	return l.value
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool {
	return l.strategy == "" && l.value == ""
}

func (l Locator) String() string {
	if l.IsZero() {
		return ""
	}
	return string(l.strategy) + "=" + l.value
}

// Selector converts the locator to a query usable by CSS- or XPath-based drivers.
// The boolean is true when the query is XPath.
func (l Locator) Selector() (string, bool) {
	switch l.strategy {
	case StrategyID:
		return "#" + cssIdent(l.value), false
	case StrategyName:
		return fmt.Sprintf(`[name="%s"]`, strings.ReplaceAll(l.value, `"`, `\"`)), false
	case StrategyXPath:
		return l.value, true
	default:
		return l.value, false
	}
}

// cssIdent escapes characters that are not valid in a bare CSS identifier.
func cssIdent(value string) string {
	var b strings.Builder
	for i, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-', r > 0x7f:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				fmt.Fprintf(&b, `\%x `, r)
				continue
			}
			b.WriteRune(r)
		default:
			b.WriteRune('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
