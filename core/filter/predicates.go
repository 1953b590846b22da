// Package filter implements composable, URL-encodable query predicates.
//
// A Predicate turns a raw string parameter into an immutable Wrapper value;
// a Filtering composes named wrappers into a query object with a
// draft/settled two-phase commit and change notification.
package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Wrapper is an immutable filter value. Merge and Without never mutate
// either operand; they return new values. A nil result from Without means
// "nothing remains, delete the predicate".
type Wrapper interface {
	// Get returns the semantic value (string, []string, bool, time.Time).
	Get() interface{}
	// Param returns the canonical string encoding; it round-trips through
	// the predicate constructor and URL query-string escaping.
	Param() string
	// Query returns the value shape expected by the query layer.
	Query() interface{}
	Merge(other Wrapper) Wrapper
	Without(other Wrapper) Wrapper
	Equals(other Wrapper) bool
}

// Predicate parses a raw parameter.
// (nil, nil) means the parameter was rejected: existing state for the name
// is left unchanged. A *ReadError means the parameter was malformed and the
// caller should surface it.
type Predicate func(param string) (Wrapper, error)

// ReadError is a named-predicate parse/validation failure. Filtering.Read
// swallows these per key; ReadAndValidate and Add propagate them.
type ReadError struct {
	Name   string
	Reason string
}

func (e *ReadError) Error() string {
	if e.Name == "" {
		return e.Reason
	}
	return fmt.Sprintf("filter %q: %s", e.Name, e.Reason)
}

func IsReadError(err error) bool {
	_, ok := err.(*ReadError)
	return ok
}

// String wraps the raw parameter verbatim. Merge replaces, Without always
// removes the predicate entirely.
func String(param string) (Wrapper, error) {
	return stringWrapper{value: param}, nil
}

// ID is like String except the sentinel value "all" means "no filter" and
// is rejected.
func ID(param string) (Wrapper, error) {
	if param == "all" {
		return nil, nil
	}
	return stringWrapper{value: param}, nil
}

// IDs parses a comma-separated list into a de-duplicated set. Merge is set
// union, Without set difference (collapsing to removal when empty), Equals
// ignores order.
func IDs(param string) (Wrapper, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, id := range strings.Split(param, ",") {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return idsWrapper{ids: ids}, nil
}

// Require is a presence-only flag: any non-empty parameter activates it and
// its canonical encoding is "1". It cannot be partially removed.
func Require(param string) (Wrapper, error) {
	if param == "" {
		return nil, nil
	}
	return boolWrapper{value: true}, nil
}

// Flag parses a boolean the way the legacy system did: as a base-2 integer
// prefix. "0" is false, any string starting with "1" is true, and anything
// without a leading binary digit (including "2") is rejected. Do not "fix"
// this; URL state in the wild depends on it.
func Flag(param string) (Wrapper, error) {
	end := 0
	for end < len(param) && (param[end] == '0' || param[end] == '1') {
		end++
	}
	if end == 0 {
		return nil, nil
	}
	value := false
	for _, c := range param[:end] {
		if c == '1' {
			value = true
			break
		}
	}
	return boolWrapper{value: value}, nil
}

// Date accepts the literal "now", a YYYY-MM-DD day or an RFC 3339 instant.
// Unlike the other predicates it fails loudly on malformed input: an
// explicitly supplied but unparsable date is a user-facing error, not
// something to silently drop.
func Date(param string) (Wrapper, error) {
	if param == "" {
		return nil, &ReadError{Reason: "empty date"}
	}
	if param == "now" {
		return dateWrapper{t: time.Now()}, nil
	}
	if t, err := time.Parse("2006-01-02", param); err == nil {
		return dateWrapper{t: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, param); err == nil {
		return dateWrapper{t: t}, nil
	}
	return nil, &ReadError{Reason: fmt.Sprintf("%q is not a valid date", param)}
}

type stringWrapper struct {
	value string
}

func (w stringWrapper) Get() interface{}   { return w.value }
func (w stringWrapper) Param() string      { return w.value }
func (w stringWrapper) Query() interface{} { return w.value }

func (w stringWrapper) Merge(other Wrapper) Wrapper { return other }

func (w stringWrapper) Without(Wrapper) Wrapper { return nil }

func (w stringWrapper) Equals(other Wrapper) bool {
	o, ok := other.(stringWrapper)
	return ok && o.value == w.value
}

type idsWrapper struct {
	ids []string // sorted, unique
}

func (w idsWrapper) Get() interface{} {
	return append([]string(nil), w.ids...)
}

func (w idsWrapper) Param() string { return strings.Join(w.ids, ",") }

func (w idsWrapper) Query() interface{} {
	return append([]string(nil), w.ids...)
}

func (w idsWrapper) Merge(other Wrapper) Wrapper {
	o, ok := other.(idsWrapper)
	if !ok {
		return other
	}
	seen := make(map[string]struct{}, len(w.ids)+len(o.ids))
	union := make([]string, 0, len(w.ids)+len(o.ids))
	for _, ids := range [][]string{w.ids, o.ids} {
		for _, id := range ids {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				union = append(union, id)
			}
		}
	}
	sort.Strings(union)
	return idsWrapper{ids: union}
}

func (w idsWrapper) Without(other Wrapper) Wrapper {
	o, ok := other.(idsWrapper)
	if !ok {
		return nil
	}
	drop := make(map[string]struct{}, len(o.ids))
	for _, id := range o.ids {
		drop[id] = struct{}{}
	}
	var rest []string
	for _, id := range w.ids {
		if _, gone := drop[id]; !gone {
			rest = append(rest, id)
		}
	}
	if len(rest) == 0 {
		return nil
	}
	return idsWrapper{ids: rest}
}

func (w idsWrapper) Equals(other Wrapper) bool {
	o, ok := other.(idsWrapper)
	if !ok || len(o.ids) != len(w.ids) {
		return false
	}
	for i := range w.ids { // both sorted
		if w.ids[i] != o.ids[i] {
			return false
		}
	}
	return true
}

type boolWrapper struct {
	value bool
}

func (w boolWrapper) Get() interface{} { return w.value }

func (w boolWrapper) Param() string {
	if w.value {
		return "1"
	}
	return "0"
}

func (w boolWrapper) Query() interface{} { return w.value }

func (w boolWrapper) Merge(other Wrapper) Wrapper { return other }

func (w boolWrapper) Without(Wrapper) Wrapper { return nil }

func (w boolWrapper) Equals(other Wrapper) bool {
	o, ok := other.(boolWrapper)
	return ok && o.value == w.value
}

type dateWrapper struct {
	t time.Time
}

func (w dateWrapper) Get() interface{} { return w.t }

func (w dateWrapper) Param() string { return w.t.Format(time.RFC3339Nano) }

func (w dateWrapper) Query() interface{} { return w.t }

func (w dateWrapper) Merge(other Wrapper) Wrapper { return other }

func (w dateWrapper) Without(Wrapper) Wrapper { return nil }

func (w dateWrapper) Equals(other Wrapper) bool {
	o, ok := other.(dateWrapper)
	return ok && o.t.Equal(w.t)
}
